package remote

import (
	"context"

	"github.com/raine/wardrobe/internal/wardrobe"
)

const itemsPath = "/rest/v1/items"

func ownerFilter(id, ownerID string) map[string]string {
	return map[string]string{
		"id":      "eq." + id,
		"user_id": "eq." + ownerID,
	}
}

// Insert creates an item and returns the inserted rows.
func (c *Client) Insert(ctx context.Context, item wardrobe.Item) ([]wardrobe.Item, error) {
	var rows []wardrobe.Item
	_, err := handleError(c.req(ctx, &rows).
		SetHeader("Prefer", "return=representation").
		SetBody(item).
		Post(itemsPath))
	return rows, err
}

// Update applies patch to the item with id owned by ownerID and returns the
// updated rows. Zero rows means nothing matched the owner filter.
func (c *Client) Update(ctx context.Context, id, ownerID string, patch map[string]any) ([]wardrobe.Item, error) {
	var rows []wardrobe.Item
	_, err := handleError(c.req(ctx, &rows).
		SetHeader("Prefer", "return=representation").
		SetQueryParams(ownerFilter(id, ownerID)).
		SetBody(patch).
		Patch(itemsPath))
	return rows, err
}

// Delete removes the item with id owned by ownerID and returns the deleted
// rows.
func (c *Client) Delete(ctx context.Context, id, ownerID string) ([]wardrobe.Item, error) {
	var rows []wardrobe.Item
	_, err := handleError(c.req(ctx, &rows).
		SetHeader("Prefer", "return=representation").
		SetQueryParams(ownerFilter(id, ownerID)).
		Delete(itemsPath))
	return rows, err
}

// Get returns the item with id owned by ownerID, or nil if there is none.
func (c *Client) Get(ctx context.Context, id, ownerID string) (*wardrobe.Item, error) {
	var rows []wardrobe.Item
	_, err := handleError(c.req(ctx, &rows).
		SetQueryParams(ownerFilter(id, ownerID)).
		SetQueryParam("limit", "1").
		Get(itemsPath))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// List returns every item owned by ownerID, newest first.
func (c *Client) List(ctx context.Context, ownerID string) ([]wardrobe.Item, error) {
	var rows []wardrobe.Item
	_, err := handleError(c.req(ctx, &rows).
		SetQueryParams(map[string]string{
			"user_id": "eq." + ownerID,
			"order":   "created_at.desc",
		}).
		Get(itemsPath))
	return rows, err
}
