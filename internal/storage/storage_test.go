package storage_test

import (
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/storage"
)

var (
	_ cart.Storage = (*storage.Memory)(nil)
	_ cart.Storage = (*storage.Postgres)(nil)
	_ cart.Storage = (*storage.Redis)(nil)
)
