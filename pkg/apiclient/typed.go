package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pribylovaa/go-blog/pkg/envelope"
)

// Decode превращает результат вызова в значение T:
//
//	post, err := apiclient.Decode[models.Post](c.Get(ctx, "/posts/"+slug, nil))
//
// Для пустого ответа возвращается нулевое значение T.
func Decode[T any](resp *Response, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}

	if err := resp.Decode(&out); err != nil {
		return out, err
	}

	return out, nil
}

// GetPaginated запрашивает список: конверт {data, meta} разбирается целиком.
func GetPaginated[T any](ctx context.Context, c *Client, endpoint string, params Params) (envelope.Paginated[T], error) {
	var out envelope.Paginated[T]

	resp, err := c.Do(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return out, err
	}

	if resp.Empty {
		out.Data = []T{}
		return out, nil
	}

	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, &Error{
			StatusCode: resp.StatusCode,
			Code:       envelope.CodeInvalidResponse,
			Message:    "Invalid list response",
			RequestID:  resp.RequestID,
			Err:        err,
		}
	}

	if out.Data == nil {
		out.Data = []T{}
	}

	return out, nil
}
