// Package bus implements the in-process publish/subscribe bus: unicast
// subscriptions keyed by (publisher_id, event_id), multicast groups,
// direct module-to-module sends, and request/reply correlation with
// timeout.
//
// Multicast fan-out is carried over a ThreeDotsLabs/watermill
// gochannel.GoChannel transport (one topic per group): joining a group
// opens a real watermill subscription for that member and starts a
// pump goroutine draining it into the member's mailbox, so a single
// Multicast call is one watermill Publish, with watermill itself doing
// the fan-out to every live subscriber. Unicast send and the
// latency-sensitive query/reply path stay on hand-rolled Go channels,
// since their correlation and ordering guarantees are exactly what
// spec.md §8's testable invariants pin down.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/netnexus/controlplane/internal/domain/mq"
	"github.com/netnexus/controlplane/internal/domain/registry"
)

type unicastKey struct {
	publisherID uint32
	eventID     uint32
}

type group struct {
	ownerID uint32
	members map[uint32]struct{}
	pumps   map[uint32]context.CancelFunc
}

// Bus routes messages between registered modules.
type Bus struct {
	reg *registry.Registry

	mu       sync.Mutex
	unicast  map[unicastKey]map[uint32]struct{}
	groups   map[uint32]*group
	pending  map[uint32]chan *mq.Message
	reqCtr   uint32
	mcast    *gochannel.GoChannel
	mcastCtx context.Context
	cancel   context.CancelFunc
}

// New constructs a Bus bound to reg for module/mailbox lookups.
func New(reg *registry.Registry, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		reg:      reg,
		unicast:  make(map[unicastKey]map[uint32]struct{}),
		groups:   make(map[uint32]*group),
		pending:  make(map[uint32]chan *mq.Message),
		mcast:    gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger)),
		mcastCtx: ctx,
		cancel:   cancel,
	}
}

// Cleanup releases the multicast transport.
func (b *Bus) Cleanup() {
	b.cancel()
	_ = b.mcast.Close()
}

func groupTopic(groupID uint32) string {
	return fmt.Sprintf("group.%d", groupID)
}

// Subscribe registers subscriberID to receive clones of every message
// publisherID publishes under eventID.
func (b *Bus) Subscribe(subscriberID, publisherID, eventID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := unicastKey{publisherID, eventID}
	set, ok := b.unicast[k]
	if !ok {
		set = make(map[uint32]struct{})
		b.unicast[k] = set
	}
	set[subscriberID] = struct{}{}
}

// Unregister drops moduleID from every subscription list and every
// group it belongs to or owns.
func (b *Bus) Unregister(moduleID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, set := range b.unicast {
		delete(set, moduleID)
	}
	for id, g := range b.groups {
		if g.ownerID == moduleID {
			b.stopGroupLocked(g)
			delete(b.groups, id)
			continue
		}
		b.stopMemberPumpLocked(g, moduleID)
		delete(g.members, moduleID)
	}
}

// CreateGroup registers a new multicast group owned by ownerID.
func (b *Bus) CreateGroup(groupID, ownerID uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.groups[groupID]; exists {
		return fmt.Errorf("bus: group %d already exists", groupID)
	}
	b.groups[groupID] = &group{
		ownerID: ownerID,
		members: make(map[uint32]struct{}),
		pumps:   make(map[uint32]context.CancelFunc),
	}
	return nil
}

// JoinGroup adds memberID to groupID's member set and opens a real
// watermill subscription for it: a pump goroutine drains the group's
// topic into memberID's mailbox for as long as it stays a member.
func (b *Bus) JoinGroup(groupID, memberID uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[groupID]
	if !ok {
		return fmt.Errorf("bus: no such group %d", groupID)
	}
	if _, already := g.members[memberID]; already {
		return nil
	}

	ctx, cancel := context.WithCancel(b.mcastCtx)
	sub, err := b.mcast.Subscribe(ctx, groupTopic(groupID))
	if err != nil {
		cancel()
		return fmt.Errorf("bus: subscribe member %d to group %d: %w", memberID, groupID, err)
	}

	g.members[memberID] = struct{}{}
	g.pumps[memberID] = cancel
	go b.pumpGroupMember(sub, memberID)
	return nil
}

// pumpGroupMember forwards every watermill message arriving on sub to
// memberID's mailbox until sub is closed (by LeaveGroup/DestroyGroup/
// Unregister cancelling its subscription context).
func (b *Bus) pumpGroupMember(sub <-chan *message.Message, memberID uint32) {
	for wmsg := range sub {
		msg := decodeMessage(wmsg)
		b.deliver(memberID, &msg)
		wmsg.Ack()
	}
}

// LeaveGroup removes memberID from groupID's member set and stops its
// watermill pump.
func (b *Bus) LeaveGroup(groupID, memberID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.groups[groupID]; ok {
		b.stopMemberPumpLocked(g, memberID)
		delete(g.members, memberID)
	}
}

// DestroyGroup removes groupID. Only the owner may destroy it.
func (b *Bus) DestroyGroup(groupID, requesterID uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[groupID]
	if !ok {
		return fmt.Errorf("bus: no such group %d", groupID)
	}
	if g.ownerID != requesterID {
		return fmt.Errorf("bus: only owner %d may destroy group %d", g.ownerID, groupID)
	}
	b.stopGroupLocked(g)
	delete(b.groups, groupID)
	return nil
}

func (b *Bus) stopMemberPumpLocked(g *group, memberID uint32) {
	if cancel, ok := g.pumps[memberID]; ok {
		cancel()
		delete(g.pumps, memberID)
	}
}

func (b *Bus) stopGroupLocked(g *group) {
	for _, cancel := range g.pumps {
		cancel()
	}
}

// deliver copies msg and hands it to moduleID's mailbox, outside of any
// bus lock, to avoid lock inversion with the mailbox's own mutex.
func (b *Bus) deliver(moduleID uint32, msg *mq.Message) {
	d, ok := b.reg.Get(moduleID)
	if !ok {
		return
	}
	_ = d.Mailbox.Send(*msg.Clone())
}

// Publish fan-outs a cloned copy of msg to every module currently
// subscribed to (publisherID, eventID).
func (b *Bus) Publish(publisherID, eventID uint32, msg mq.Message) {
	b.mu.Lock()
	set := b.unicast[unicastKey{publisherID, eventID}]
	targets := make([]uint32, 0, len(set))
	for id := range set {
		targets = append(targets, id)
	}
	b.mu.Unlock()

	for _, id := range targets {
		b.deliver(id, &msg)
	}
}

// Multicast publishes msg once to groupID's watermill topic. Every
// member currently subscribed (one subscription per JoinGroup call)
// receives and Acks its own copy via pumpGroupMember; a group with no
// members is a no-op publish, not an error.
func (b *Bus) Multicast(groupID uint32, msg mq.Message) error {
	b.mu.Lock()
	_, ok := b.groups[groupID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("bus: no such group %d", groupID)
	}

	if err := b.mcast.Publish(groupTopic(groupID), encodeMessage(msg)); err != nil {
		return fmt.Errorf("bus: multicast publish: %w", err)
	}
	return nil
}

// encodeMessage carries an mq.Message over watermill as a payload plus
// metadata, so pumpGroupMember can reconstruct it without the sender
// and every subscriber sharing a pointer.
func encodeMessage(msg mq.Message) *message.Message {
	wmsg := message.NewMessage(watermill.NewUUID(), msg.Payload.Bytes())
	wmsg.Metadata.Set("type", strconv.FormatUint(uint64(msg.Type), 10))
	wmsg.Metadata.Set("sender_id", strconv.FormatUint(uint64(msg.SenderID), 10))
	wmsg.Metadata.Set("request_id", strconv.FormatUint(uint64(msg.RequestID), 10))
	return wmsg
}

func decodeMessage(wmsg *message.Message) mq.Message {
	msgType, _ := strconv.ParseUint(wmsg.Metadata.Get("type"), 10, 32)
	senderID, _ := strconv.ParseUint(wmsg.Metadata.Get("sender_id"), 10, 32)
	requestID, _ := strconv.ParseUint(wmsg.Metadata.Get("request_id"), 10, 32)
	payload := make(mq.Owned, len(wmsg.Payload))
	copy(payload, wmsg.Payload)
	return mq.Message{
		Type:      mq.MsgType(msgType),
		SenderID:  uint32(senderID),
		RequestID: uint32(requestID),
		Payload:   payload,
	}
}

// Send is a direct unicast to one module's mailbox, bypassing
// subscription tables entirely.
func (b *Bus) Send(targetID uint32, msg mq.Message) {
	b.deliver(targetID, &msg)
}

// SendResponse is the reply-side counterpart of Send. If a waiter is
// registered for msg.RequestID, the reply goes straight to that
// waiter's one-shot slot instead of the target's mailbox. A reply with
// a non-zero RequestID and no registered waiter (the query already
// timed out) is dropped; a RequestID of 0 goes to the target's mailbox.
func (b *Bus) SendResponse(targetID uint32, msg mq.Message) {
	if msg.RequestID != 0 {
		b.mu.Lock()
		ch, ok := b.pending[msg.RequestID]
		b.mu.Unlock()
		if ok {
			select {
			case ch <- msg.Clone():
			default:
				// slot already filled or abandoned by a timed-out query
			}
			return
		}
		// no waiter left: a late reply is dropped
		return
	}
	b.deliver(targetID, &msg)
}

// Query issues a synchronous request/reply round trip: it stamps a
// fresh request id and senderID onto msg, sends it to targetID, then
// waits up to timeout for the correlated reply. Returns nil on timeout;
// the pending slot is removed either way so a late reply is dropped,
// never delivered to a query that has already given up.
func (b *Bus) Query(senderID, eventID, targetID uint32, msg mq.Message, timeout time.Duration) *mq.Message {
	_ = eventID
	reqID := atomic.AddUint32(&b.reqCtr, 1)
	if reqID == 0 {
		reqID = atomic.AddUint32(&b.reqCtr, 1)
	}
	msg.SenderID = senderID
	msg.RequestID = reqID

	ch := make(chan *mq.Message, 1)
	b.mu.Lock()
	b.pending[reqID] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, reqID)
		b.mu.Unlock()
	}()

	b.deliver(targetID, &msg)

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case reply := <-ch:
		return reply
	case <-t.C:
		return nil
	}
}
