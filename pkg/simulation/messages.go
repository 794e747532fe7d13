package simulation

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The messages understood by WorldActor are protobuf well-known types:
//
//	*durationpb.Duration      run one tick of that duration
//	*wrapperspb.BytesValue    replace the configuration (JSON document)
//	*wrapperspb.Int32Value    spawn that many boids
//	*wrapperspb.UInt64Value   select a boid, 0 clears the selection
//	*emptypb.Empty            despawn every boid

// TickMessage asks the world to advance by dt.
func TickMessage(dt time.Duration) *durationpb.Duration {
	return durationpb.New(dt)
}

// ConfigMessage carries a full configuration to the world.
func ConfigMessage(cfg *Config) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return wrapperspb.Bytes(b), nil
}

// SpawnMessage asks the world to spawn n boids.
func SpawnMessage(n int) *wrapperspb.Int32Value {
	return wrapperspb.Int32(int32(n))
}

// SelectMessage selects a boid, or clears the selection when id is 0.
func SelectMessage(id uint64) *wrapperspb.UInt64Value {
	return wrapperspb.UInt64(id)
}

// DespawnAllMessage asks the world to remove every boid.
func DespawnAllMessage() *emptypb.Empty {
	return &emptypb.Empty{}
}
