package api

import (
	"context"
	"encoding/json"
	"log/slog"

	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/logger"
)

// Call dispatches req, applies the success predicate and decodes data into T.
func Call[T any](ctx context.Context, c *Client, req Request) (Envelope[T], error) {
	var out Envelope[T]

	raw, err := c.Send(ctx, req)
	if err != nil {
		return out, err
	}
	if err := c.Accept(ctx, req, raw); err != nil {
		return out, err
	}

	out.ResultCode, out.Msg, out.Message = raw.ResultCode, raw.Msg, raw.Message
	if HasData(raw.Data) {
		if err := json.Unmarshal(raw.Data, &out.Data); err != nil {
			return out, apperrors.UnexpectedResult(raw.ResultCode, "malformed data: "+err.Error())
		}
	}
	return out, nil
}

// Exec is Call for endpoints whose data is ignored.
func Exec(ctx context.Context, c *Client, req Request) error {
	_, err := Call[json.RawMessage](ctx, c, req)
	return err
}

// Accept returns nil for a successful envelope. An unrecognized code with
// data is accepted and logged as a backend inconsistency.
func (c *Client) Accept(ctx context.Context, req Request, env *RawEnvelope) error {
	switch Judge(*env) {
	case Accepted:
		return nil
	case AcceptedAmbiguous:
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "ambiguous success envelope accepted",
			slog.String("inconsistency", "backend"),
			slog.String("method", req.Method),
			slog.String("route", routeLabel(req.Path)),
			slog.String("result_code", env.ResultCode),
		)
		return nil
	default:
		return apperrors.UnexpectedResult(env.ResultCode, env.Text())
	}
}
