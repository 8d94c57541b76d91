package handlers

// ErrorResponse is the uniform error payload returned by all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// GasProfileResponse serializes a gas profile with string fees, since wei
// amounts overflow JSON numbers.
type GasProfileResponse struct {
	GasLimit             uint64 `json:"gas_limit"`
	MaxFeePerGas         string `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas"`
}
