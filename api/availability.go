package api

import (
	"context"
	"errors"
	"net/http"
)

// DexAvailable reports whether the swap venue is enabled for this
// deployment. 204 means available, 403 means unavailable, anything else is
// an error.
func (c *Client) DexAvailable(ctx context.Context) (bool, error) {
	err := c.postJSON(ctx, c.endpoints.CheckoutAPI+"/v1/availability/dex", struct{}{}, nil)
	if err == nil {
		return true, nil
	}

	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusForbidden {
		return false, nil
	}
	return false, err
}
