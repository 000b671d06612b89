package oioi

import "fmt"

// ResultCode classifies a partner response.
type ResultCode int

// Known partner result codes.
const (
	CodeSuccess          ResultCode = 0
	CodeSystemError      ResultCode = 1
	CodeNotAuthorized    ResultCode = 101
	CodeInvalidAPIKey    ResultCode = 102
	CodeInvalidPartner   ResultCode = 103
	CodeStationUnknown   ResultCode = 201
	CodeConnectorUnknown ResultCode = 202
	CodeSessionUnknown   ResultCode = 301
	CodeRFIDUnknown      ResultCode = 401
)

// Result is the status block every partner response carries.
type Result struct {
	Code    ResultCode `json:"code"`
	Message string     `json:"message"`
}

// Response is the generic partner reply envelope.
type Response struct {
	Result Result `json:"result"`
}

// Success reports whether the partner accepted the request.
func (r *Response) Success() bool {
	return r != nil && r.Result.Code == CodeSuccess
}

// Err converts a non-success response into an error, nil otherwise.
func (r *Response) Err() error {
	if r.Success() {
		return nil
	}
	if r == nil {
		return fmt.Errorf("oioi: empty response")
	}
	return fmt.Errorf("oioi: code %d: %s", r.Result.Code, r.Result.Message)
}
