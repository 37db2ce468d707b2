package onesdk

// Profile is a locally resolved profile handle, the Go analogue of
// Profile in client.py.
type Profile struct {
	client *Client
	name   string
	url    string
}

// Name returns the profile's scoped name.
func (p *Profile) Name() string { return p.name }

// URL returns the resolved file:// URL backing this profile.
func (p *Profile) URL() string { return p.url }

// GetUseCase returns a handle to one of this profile's use cases.
func (p *Profile) GetUseCase(name string) *UseCase {
	return &UseCase{client: p.client, profile: p, name: name}
}
