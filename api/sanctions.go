package api

import "context"

// SanctionsEntry is one participant submitted for screening.
type SanctionsEntry struct {
	Address      string `json:"address"`
	TokenAddress string `json:"token_addr"`
	Amount       string `json:"amount"`
}

// SanctionsResult is the risk service's verdict for one address.
type SanctionsResult struct {
	Address    string `json:"address"`
	Risk       string `json:"risk"`
	RiskReason string `json:"risk_reason"`
}

// CheckSanctions submits one batched screening request for every entry.
func (c *Client) CheckSanctions(ctx context.Context, entries []SanctionsEntry) ([]SanctionsResult, error) {
	var resp []SanctionsResult
	if err := c.postJSON(ctx, c.endpoints.RiskAPI+"/v2/sanctions/check", entries, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
