package rollback

import (
	"github.com/automoto/blockshot/input"
	"github.com/automoto/blockshot/network"
	"github.com/automoto/blockshot/shared/messages"
	"github.com/automoto/blockshot/shared/protocol"
	"github.com/sirupsen/logrus"
)

// poll drains the channel and applies every input packet. A peer loss or a
// channel failure ends the session.
func (s *Session[S]) poll() {
	packets, err := s.channel.Receive()
	for _, p := range packets {
		s.handlePacket(p)
	}
	if err != nil {
		s.end(err)
		return
	}

	if s.cfg.DisconnectTimeout <= 0 {
		return
	}
	for _, id := range s.peerOrder {
		pr := s.peers[id]
		if s.tick-pr.lastHeard >= s.cfg.DisconnectTimeout {
			s.end(&network.PeerLostError{Peer: id, Reason: ErrPeerTimeout})
			return
		}
	}
}

func (s *Session[S]) handlePacket(p network.Packet) {
	log := s.log.WithField("peer", p.From)

	pr, ok := s.peers[p.From]
	if !ok {
		log.Debug("packet from unknown peer")
		return
	}
	msg, err := protocol.DecodeInput(p.Payload)
	if err != nil {
		log.WithError(err).Debug("dropping packet")
		return
	}
	if !s.validPacket(pr, msg) {
		log.Debug("dropping packet with foreign handles or invalid symbols")
		return
	}

	pr.lastHeard = s.tick
	pr.stats.PacketsReceived++

	if msg.Disconnect {
		s.end(&network.PeerLostError{Peer: pr.id, Reason: ErrPeerQuit})
		return
	}
	// An ack can never pass what was sent.
	if ack := Frame(msg.Ack); ack > pr.acked && ack <= s.localNext {
		pr.acked = ack
	}

	// Frames too far ahead would overwrite slots still needed for replay.
	// The peer resends them since they are not acknowledged.
	limit := s.frame + Frame(len(s.queues[0].records)) - Frame(s.cfg.MaxPrediction) - 1

	mismatch := false
	for i, row := range msg.Symbols {
		f := Frame(msg.Start) + Frame(i)
		if f >= limit {
			break
		}
		for col, h := range msg.Handles {
			q := s.queues[h]
			if f != q.next {
				continue
			}
			if q.confirm(input.Symbol(row[col])) {
				s.markIncorrect(f)
				mismatch = true
			}
		}
	}
	if mismatch {
		pr.stats.Rollbacks++
	}

	if msg.HasChecksum {
		s.remoteChecksum(pr, Frame(msg.ChecksumFrame), msg.Checksum)
	}
}

func (s *Session[S]) validPacket(pr *peer, msg messages.InputPacket) bool {
	for _, h := range msg.Handles {
		if int(h) >= len(s.players) {
			return false
		}
		p := s.players[h]
		if !p.IsRemote() || p.Peer != pr.id {
			return false
		}
	}
	for _, row := range msg.Symbols {
		for _, b := range row {
			if !input.Symbol(b).Valid() {
				return false
			}
		}
	}
	return true
}

// sendInputs sends every peer the local inputs it has not acknowledged yet,
// along with the newest local checksum.
func (s *Session[S]) sendInputs() {
	handles := make([]uint8, len(s.local))
	for i, h := range s.local {
		handles[i] = uint8(h)
	}
	first := s.queues[s.local[0]]

	for _, id := range s.peerOrder {
		pr := s.peers[id]

		start, _ := first.confirmedRange(pr.acked)
		if start > s.localNext {
			start = s.localNext
		}
		rows := make([][]byte, 0, s.localNext-start)
		for f := start; f < s.localNext; f++ {
			row := make([]byte, len(s.local))
			for col, h := range s.local {
				r, _ := s.queues[h].get(f)
				row[col] = byte(r.symbol)
			}
			rows = append(rows, row)
		}

		msg := messages.InputPacket{
			Start:   uint32(start),
			Handles: handles,
			Symbols: rows,
			Ack:     uint32(s.received(pr)),
		}
		if s.hasSum {
			msg.HasChecksum = true
			msg.ChecksumFrame = uint32(s.lastSum)
			msg.Checksum = s.lastValue
		}

		payload, err := protocol.EncodeInput(msg)
		if err != nil {
			s.log.WithError(err).Error("encode input packet")
			continue
		}
		if err := s.channel.Send(id, payload); err != nil {
			s.end(err)
			return
		}
		pr.stats.PacketsSent++

		if len(rows) > 0 {
			s.log.WithFields(logrus.Fields{
				"peer":  id,
				"start": start,
				"count": len(rows),
			}).Trace("sent inputs")
		}
	}
}

func encodeQuit() ([]byte, error) {
	return protocol.EncodeInput(messages.InputPacket{Disconnect: true})
}
