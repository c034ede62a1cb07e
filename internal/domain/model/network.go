package model

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

func (n Network) String() string {
	return string(n)
}

// Fundraising Move module and struct names.
const (
	FundraisingModule  = "fundraising"
	CampaignStructName = "Campaign"
	DonationStructName = "Donation"
)

// TypeTag returns the fully qualified Move type tag of a fundraising struct.
func TypeTag(packageID, structName string) string {
	return packageID + "::" + FundraisingModule + "::" + structName
}
