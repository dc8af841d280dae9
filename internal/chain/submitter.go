package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openbuilders/highload-sender/internal/highload"

	"github.com/xssnick/tonutils-go/tl"
	"github.com/xssnick/tonutils-go/ton"
)

// LiteSubmitter sends external messages straight to a liteserver.
type LiteSubmitter struct {
	client ton.APIClientWrapped
	log    *slog.Logger
}

func NewLiteSubmitter(client ton.APIClientWrapped) *LiteSubmitter {
	return &LiteSubmitter{
		client: client,
		log:    slog.With("component", "lite-submitter"),
	}
}

func (s *LiteSubmitter) Name() string {
	return "liteserver"
}

func (s *LiteSubmitter) Submit(ctx context.Context, env *highload.Envelope) error {
	var resp tl.Serializable
	err := s.client.Client().QueryLiteserver(ctx, ton.SendMessage{Body: env.BOC}, &resp)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	if lsErr, ok := resp.(ton.LSError); ok {
		return fmt.Errorf("liteserver rejected message: code %d: %s",
			lsErr.Code, lsErr.Text)
	}

	s.log.Debug("message submitted", "hash", env.HashHex())

	return nil
}
