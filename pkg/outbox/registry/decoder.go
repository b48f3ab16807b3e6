package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dvillegas/storefront-backend/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (any, error)

// DecoderRegistry maps (event type, payload version) pairs to decoders.
// Consumers register the versions they understand at startup; an unknown
// pair at decode time means the producer shipped a version this consumer
// does not handle yet.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	byKey map[decoderKey]decoderFunc
}

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{byKey: make(map[decoderKey]decoderFunc)}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.byKey[decoderKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.byKey[decoderKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no decoder registered for %s version %d", eventType, version)
	}
	return decoder(payload)
}
