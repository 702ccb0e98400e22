package model

// AccessToken is the object carried in access tokens. The token subject is the
// wallet address.
type AccessToken struct {
	Address string `json:"address"`
}
