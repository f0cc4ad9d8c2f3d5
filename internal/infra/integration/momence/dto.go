package momence

type leadCollectorRequest struct {
	Token           string `json:"token"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	SourceID        string `json:"sourceId"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	ZipCode         string `json:"zipCode,omitempty"`
	DiscoveryAnswer string `json:"discoveryAnswer,omitempty"`
}
