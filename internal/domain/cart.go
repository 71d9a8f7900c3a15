package domain

// Total sums the line subtotals. It is always derived, never stored.
func (c Cart) Total() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return RoundAmount(total)
}

// Find returns the index of the line for (productID, size) or -1.
func (c Cart) Find(productID, size string) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.Size == size {
			return i
		}
	}
	return -1
}

// Merge adds item to the cart, combining quantities when the (product, size) pair is
// already present. The existing line keeps its captured unit price.
func (c *Cart) Merge(item CartItem) CartItem {
	if idx := c.Find(item.ProductID, item.Size); idx >= 0 {
		c.Items[idx].Quantity += item.Quantity
		return c.Items[idx]
	}
	c.Items = append(c.Items, item)
	return item
}

// SetQuantity replaces the quantity for a line; quantity <= 0 removes it. It reports
// whether the line existed.
func (c *Cart) SetQuantity(productID, size string, quantity int) bool {
	idx := c.Find(productID, size)
	if idx < 0 {
		return false
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return true
	}
	c.Items[idx].Quantity = quantity
	return true
}

// Remove drops the line for (productID, size) and reports whether it existed.
func (c *Cart) Remove(productID, size string) bool {
	return c.SetQuantity(productID, size, 0)
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
