package repositories

// WithCarts returns a registry that serves carts from carts and everything else from base.
// Cart writes made inside base.RunInTx are not part of base's transaction.
func WithCarts(base Registry, carts CartRepository) Registry {
	if carts == nil {
		return base
	}
	return &cartOverride{Registry: base, carts: carts}
}

type cartOverride struct {
	Registry
	carts CartRepository
}

func (r *cartOverride) Carts() CartRepository { return r.carts }
