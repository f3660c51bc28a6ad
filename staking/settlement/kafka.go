package settlement

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
)

// diffMessage is the wire shape published to the validator-diff feed (no
// reward settlement summary is published) — other node subsystems that are out of scope for this module (peer
// gossip, monitoring) consume it independently.
type diffMessage struct {
	Height uint64            `json:"height"`
	Diffs  []ValidatorUpdate `json:"diffs"`
}

// publishDiff sends the per-block validator diff to Kafka if a producer was
// configured; disabled deployments (kafkaProducer == nil) are a silent
// no-op, matching the reference node's broker-gated producer pattern.
func (l *Loop) publishDiff(_ context.Context, height uint64, diffs []ValidatorUpdate) {
	if l.kafkaProducer == nil {
		return
	}

	payload, err := json.Marshal(diffMessage{Height: height, Diffs: diffs})
	if err != nil {
		l.log.Errorf("failed to marshal validator diff for height %d: %v", height, err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: l.kafkaTopic,
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := l.kafkaProducer.SendMessage(msg); err != nil {
		l.log.Warnf("failed to publish validator diff for height %d: %v", height, err)
	}
}
