package model

// Account is the wallet account currently connected to the client.
type Account struct {
	Address string `json:"address"`
}

// SameAccount reports whether a and b identify the same account. Two absent
// accounts are the same.
func SameAccount(a, b *Account) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Address == b.Address
}
