package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"reputest/internal/model"
)

type scoreReader interface {
	FindIdentityByHandle(ctx context.Context, handle string) (model.User, bool, error)
	VibeScores(ctx context.Context, emitterID, sensorID string) (model.VibeScore, error)
	TransferTotal(ctx context.Context, senderID, receiverID string) (int64, error)
}

// printScores reports stored relations only; unknown handles are not looked up remotely.
func printScores(ctx context.Context, w io.Writer, db scoreReader, emitterHandle, sensorHandle string) error {
	emitter, err := knownUser(ctx, db, emitterHandle)
	if err != nil {
		return err
	}
	sensor, err := knownUser(ctx, db, sensorHandle)
	if err != nil {
		return err
	}
	s, err := db.VibeScores(ctx, emitter.ID, sensor.ID)
	if err != nil {
		return err
	}
	sent, err := db.TransferTotal(ctx, sensor.ID, emitter.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "@%s -> @%s: 1st degree %d, 2nd degree %d, 3rd degree %d\n",
		emitter.Username, sensor.Username, s.First, s.Second, s.Third)
	fmt.Fprintf(w, "@%s sent @%s %d megajoules\n", sensor.Username, emitter.Username, sent)
	return nil
}

func knownUser(ctx context.Context, db scoreReader, handle string) (model.User, error) {
	handle = strings.TrimPrefix(handle, "@")
	u, ok, err := db.FindIdentityByHandle(ctx, handle)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, fmt.Errorf("no stored user with handle %q", handle)
	}
	return u, nil
}
