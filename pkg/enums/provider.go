package enums

import "fmt"

// Provider identifies a payment provider integration.
type Provider string

const (
	ProviderMercadoPago Provider = "mercadopago"
	ProviderPushinPay   Provider = "pushinpay"
	ProviderStripe      Provider = "stripe"
)

var validProviders = []Provider{
	ProviderMercadoPago,
	ProviderPushinPay,
	ProviderStripe,
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Provider.
func (p Provider) IsValid() bool {
	for _, candidate := range validProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProvider converts raw input into a Provider.
func ParseProvider(value string) (Provider, error) {
	for _, candidate := range validProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider %q", value)
}
