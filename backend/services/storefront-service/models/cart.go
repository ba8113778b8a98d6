package models

// AddCartItemRequest adds a product to the cart. Name, price and stock are
// always read from the product row.
type AddCartItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// CartSelectionRequest names the cart lines picked for checkout.
type CartSelectionRequest struct {
	SelectedIDs []string `json:"selectedIds" binding:"required,min=1"`
}

type CartTotal struct {
	SelectedIDs []string `json:"selectedIds"`
	Total       int64    `json:"total"`
}

type CartCount struct {
	ItemCount int `json:"itemCount"`
	Quantity  int `json:"quantity"`
}
