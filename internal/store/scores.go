package store

import (
	"context"

	"reputest/internal/model"
)

// VibeScores counts emitter -> sensor paths through the good_vibes graph.
// Degree one is 1 when a direct record exists.
func (d *DB) VibeScores(ctx context.Context, emitterID, sensorID string) (model.VibeScore, error) {
	var s model.VibeScore
	direct, err := d.VibeRecordExistsForPair(ctx, emitterID, sensorID)
	if err != nil {
		return s, err
	}
	if direct {
		s.First = 1
	}
	if _, err := d.queryRow(ctx, `SELECT COUNT(*) FROM
		(SELECT DISTINCT emitter_id, sensor_id FROM good_vibes) a
		JOIN (SELECT DISTINCT emitter_id, sensor_id FROM good_vibes) b ON a.sensor_id = b.emitter_id
		WHERE a.emitter_id = ? AND b.sensor_id = ?`,
		[]any{emitterID, sensorID}, &s.Second); err != nil {
		return s, err
	}
	if _, err := d.queryRow(ctx, `SELECT COUNT(*) FROM
		(SELECT DISTINCT emitter_id, sensor_id FROM good_vibes) a
		JOIN (SELECT DISTINCT emitter_id, sensor_id FROM good_vibes) b ON a.sensor_id = b.emitter_id
		JOIN (SELECT DISTINCT emitter_id, sensor_id FROM good_vibes) c ON b.sensor_id = c.emitter_id
		WHERE a.emitter_id = ? AND c.sensor_id = ?`,
		[]any{emitterID, sensorID}, &s.Third); err != nil {
		return s, err
	}
	return s, nil
}
