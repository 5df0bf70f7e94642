// Package msg defines the wire messages exchanged between the two
// participants of a payment channel over a topic-addressed pub/sub
// transport.
package msg

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// ProtocolName is the well-known topic name component shared by both
// participants of the protocol. It is the first component of every topic.
const ProtocolName = "paych/1"

// Identity is an opaque transport-level address of a participant.
type Identity string

// Phase tags a topic with the protocol phase the message belongs to.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseReady   Phase = "ready"
	PhaseDeliver Phase = "deliver"
	PhasePayment Phase = "payment"
	PhaseDone    Phase = "done"
)

// Topic is the tuple a message is addressed with. ChannelID is zero for
// the negotiation phases that happen before a channel exists on chain.
type Topic struct {
	Name      string
	ChannelID uint64
	Phase     Phase
}

// NegotiationTopic returns the channel-less topic used before the channel
// is created on chain.
func NegotiationTopic(phase Phase) Topic {
	return Topic{Name: ProtocolName, Phase: phase}
}

// ChannelTopic returns the topic scoped to an open channel.
func ChannelTopic(channelID uint64, phase Phase) Topic {
	return Topic{Name: ProtocolName, ChannelID: channelID, Phase: phase}
}

// String renders the topic as its canonical wire key.
func (t Topic) String() string {
	if t.ChannelID == 0 {
		return fmt.Sprintf("%s/%s", t.Name, t.Phase)
	}
	return fmt.Sprintf("%s/%s/%s", t.Name, strconv.FormatUint(t.ChannelID, 10), t.Phase)
}

// Message is a single protocol message.
type Message struct {
	From    Identity
	To      Identity
	Topic   Topic
	Payload []byte
}

// Filter selects the messages a subscriber wants delivered: messages from
// From addressed to To on any of the listed topics, in order.
type Filter struct {
	From   Identity
	To     Identity
	Topics []Topic
}

type Encoder = json.Encoder

func NewEncoder(w io.Writer) *Encoder {
	return json.NewEncoder(w)
}

type Decoder = json.Decoder

func NewDecoder(r io.Reader) *Decoder {
	return json.NewDecoder(r)
}
