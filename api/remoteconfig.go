package api

import "context"

// RemoteConfigResponse is the raw shape of GET /v1/config. Normalization
// (empty overrides to an explicit empty map) happens in the config package.
type RemoteConfigResponse struct {
	Dex               DexConfigResponse    `json:"dex"`
	RiskAssessment    RiskConfigResponse   `json:"riskAssessment"`
	ImxAddressMapping map[string]string    `json:"imxAddressMapping"`
	OnRamp            OnRampConfigResponse `json:"onRamp"`
}

type DexConfigResponse struct {
	Overrides map[string]string `json:"overrides,omitempty"`
}

type RiskConfigResponse struct {
	Enabled bool     `json:"enabled"`
	Levels  []string `json:"levels"`
}

type OnRampConfigResponse struct {
	FeeBasisPoints int64 `json:"feeBasisPoints"`
}

// GetRemoteConfig fetches the environment-scoped configuration blob.
func (c *Client) GetRemoteConfig(ctx context.Context) (*RemoteConfigResponse, error) {
	var resp RemoteConfigResponse
	if err := c.getJSON(ctx, c.endpoints.CheckoutAPI+"/v1/config", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
