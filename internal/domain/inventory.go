package domain

import (
	"errors"
	"strings"
)

// ErrSizeNotFound is returned when a restore targets a size the product no longer carries.
var ErrSizeNotFound = errors.New("inventory: size not found")

// StockFor returns the stock for size, treating an absent size as zero.
func StockFor(product Product, size string) int {
	idx := sizeIndex(product, size)
	if idx < 0 {
		return 0
	}
	return product.SizeStock[idx].Stock
}

// CheckAvailability reports whether size exists on the product with at least qty in stock.
func CheckAvailability(product Product, size string, qty int) bool {
	if qty <= 0 {
		return false
	}
	idx := sizeIndex(product, size)
	if idx < 0 {
		return false
	}
	return product.SizeStock[idx].Stock >= qty
}

// Decrease subtracts qty from size when enough stock is present. It leaves the product
// untouched and returns false when stock is insufficient or the size is absent.
func Decrease(product *Product, size string, qty int) bool {
	if product == nil || qty <= 0 {
		return false
	}
	idx := sizeIndex(*product, size)
	if idx < 0 || product.SizeStock[idx].Stock < qty {
		return false
	}
	product.SizeStock[idx].Stock -= qty
	return true
}

// Restore adds qty back to size.
func Restore(product *Product, size string, qty int) error {
	if product == nil {
		return ErrSizeNotFound
	}
	if qty <= 0 {
		return nil
	}
	idx := sizeIndex(*product, size)
	if idx < 0 {
		return ErrSizeNotFound
	}
	product.SizeStock[idx].Stock += qty
	return nil
}

// ValidateSizeStock checks that sizes are non-empty and unique and that stock is non-negative.
func ValidateSizeStock(entries []SizeStock) error {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		size := strings.TrimSpace(entry.Size)
		if size == "" {
			return errors.New("inventory: size is required")
		}
		if entry.Stock < 0 {
			return errors.New("inventory: stock must not be negative")
		}
		if _, ok := seen[size]; ok {
			return errors.New("inventory: duplicate size " + size)
		}
		seen[size] = struct{}{}
	}
	return nil
}

func sizeIndex(product Product, size string) int {
	for i, entry := range product.SizeStock {
		if entry.Size == size {
			return i
		}
	}
	return -1
}
