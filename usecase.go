package onesdk

import (
	"context"
	"encoding/json"
)

// UseCase routes Perform calls to one profile/provider/usecase
// combination, the Go analogue of UseCase in client.py.
type UseCase struct {
	client  *Client
	profile *Profile
	name    string
}

// Name returns the use case's name.
func (u *UseCase) Name() string { return u.name }

// Perform invokes this use case against provider with input, optional
// parameters and security values, returning the map's raw JSON result
// or a *runtime.PerformError/*runtime.ValidationError/
// *runtime.UnexpectedError on failure.
func (u *UseCase) Perform(ctx context.Context, provider string, input json.RawMessage, parameters map[string]string, security json.RawMessage) (json.RawMessage, error) {
	return u.client.perform(ctx, u.profile.name, provider, u.name, input, parameters, security)
}
