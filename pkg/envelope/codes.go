package envelope

// Стабильные машиночитаемые коды ошибок.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeClientClosedRequest = "CLIENT_CLOSED_REQUEST"
	CodeInternal            = "INTERNAL_ERROR"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeTimeout             = "TIMEOUT"
)

// Коды, которые выставляет только клиент.
const (
	// CodeUnknown — тело ошибки не удалось разобрать.
	CodeUnknown = "UNKNOWN_ERROR"
	// CodeNetwork — запрос не дошёл до сервера (статус 0).
	CodeNetwork = "NETWORK_ERROR"
	// CodeInvalidResponse — тело успешного ответа не является JSON.
	CodeInvalidResponse = "INVALID_RESPONSE"
)

// DefaultErrorMessage — сообщение, если сервер его не прислал.
const DefaultErrorMessage = "An error occurred"
