// Package gameserver binds the protocol opcodes to session operations and
// assembles the running server.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/auth"
	"github.com/cory-johannsen/fairway/internal/game/catalog"
	"github.com/cory-johannsen/fairway/internal/game/dispatch"
	"github.com/cory-johannsen/fairway/internal/game/room"
	"github.com/cory-johannsen/fairway/internal/game/session"
	"github.com/cory-johannsen/fairway/internal/game/transaction"
	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// Login result codes of OpLoginResult.
const (
	LoginOK       uint8 = 0
	LoginRejected uint8 = 1
)

// Room result codes of OpRoomResult.
const (
	RoomOK          uint8 = 0
	RoomFull        uint8 = 1
	RoomNotFound    uint8 = 2
	RoomBadPassword uint8 = 3
	RoomUnknownKind uint8 = 4
	RoomUnavailable uint8 = 5
)

// Shop result codes of OpShopResult.
const (
	ShopOK                 uint8 = 0
	ShopUnknownItem        uint8 = 1
	ShopInsufficientPang   uint8 = 2
	ShopInsufficientCookie uint8 = 3
)

// TicketVerifier checks login tickets.
type TicketVerifier interface {
	Verify(token string) (auth.Ticket, error)
}

// Handlers holds the collaborators opcode handlers need beyond the connection.
type Handlers struct {
	verifier TicketVerifier
	catalog  *catalog.Catalog
	clock    func() time.Time
}

// NewHandlers creates Handlers.
//
// Precondition: verifier and cat must be non-nil.
func NewHandlers(verifier TicketVerifier, cat *catalog.Catalog, clock func() time.Time) *Handlers {
	if clock == nil {
		clock = time.Now
	}
	return &Handlers{verifier: verifier, catalog: cat, clock: clock}
}

// Entries lists every inbound opcode with its handler.
func (h *Handlers) Entries() []dispatch.Entry[*session.Conn] {
	return []dispatch.Entry[*session.Conn]{
		{Opcode: packet.OpLogin, Handler: h.Login},
		{Opcode: packet.OpEnterLobby, Handler: h.EnterLobby},
		{Opcode: packet.OpRoomChat, Handler: h.RoomChat},
		{Opcode: packet.OpCreateRoom, Handler: h.CreateRoom},
		{Opcode: packet.OpJoinRoom, Handler: h.JoinRoom},
		{Opcode: packet.OpChangeEquipment, Handler: h.ChangeEquipment},
		{Opcode: packet.OpLeaveRoom, Handler: h.LeaveRoom},
		{Opcode: packet.OpBuyItem, Handler: h.BuyItem},
		{Opcode: packet.OpSyncRequest, Handler: h.SyncTransactions},
	}
}

// NewTable builds the dispatch table for h.
func NewTable(h *Handlers) (*dispatch.Table[*session.Conn], error) {
	return dispatch.NewTable(h.Entries())
}

// Login verifies the ticket, loads the profile and answers with the account
// identity followed by both balances. A rejected ticket is answered and then
// fails the frame, which disconnects the client.
func (h *Handlers) Login(ctx context.Context, c *session.Conn, r *packet.Reader) error {
	token, err := r.PString()
	if err != nil {
		return err
	}
	ticket, err := h.verifier.Verify(token)
	if err != nil {
		w := packet.NewWriter(packet.OpLoginResult)
		w.WriteU8(LoginRejected)
		_ = c.SendPacket(w)
		return fmt.Errorf("login: %w", err)
	}
	if err := c.Login(ctx, ticket.AccountID, ticket.Username, ticket.Nickname); err != nil {
		return err
	}

	p, _ := c.Profile()
	w := packet.NewWriter(packet.OpLoginResult)
	w.WriteU8(LoginOK)
	w.WriteU32(c.ID())
	w.WriteU32(ticket.AccountID)
	w.WritePString(ticket.Username)
	w.WritePString(ticket.Nickname)
	w.WriteU8(p.Stats.Level)
	if err := c.SendPacket(w); err != nil {
		return err
	}
	if err := c.SendPang(); err != nil {
		return err
	}
	return c.SendCookie()
}

// EnterLobby moves an authenticated connection into the lobby.
func (h *Handlers) EnterLobby(ctx context.Context, c *session.Conn, _ *packet.Reader) error {
	return c.EnterLobby(ctx)
}

// RoomChat relays a message to every member of the sender's room, sender included.
func (h *Handlers) RoomChat(_ context.Context, c *session.Conn, r *packet.Reader) error {
	msg, err := r.PString()
	if err != nil {
		return err
	}
	rm, err := c.Room()
	if err != nil {
		return err
	}
	w := packet.NewWriter(packet.OpChatMessage)
	w.WriteU32(c.ID())
	w.WritePString(c.Nickname())
	w.WritePString(msg)
	rm.Broadcast(w.Bytes())
	return nil
}

// CreateRoom opens a room of the requested kind with the sender as master.
func (h *Handlers) CreateRoom(ctx context.Context, c *session.Conn, r *packet.Reader) error {
	kind, err := r.U8()
	if err != nil {
		return err
	}
	name, err := r.PString()
	if err != nil {
		return err
	}
	password, err := r.PString()
	if err != nil {
		return err
	}

	rm, err := c.CreateRoom(ctx, kind, name, password)
	if err != nil {
		return replyRoomError(c, err)
	}
	return sendRoomResult(c, RoomOK, rm.ID())
}

// JoinRoom enters an existing room.
func (h *Handlers) JoinRoom(ctx context.Context, c *session.Conn, r *packet.Reader) error {
	id, err := r.U16()
	if err != nil {
		return err
	}
	password, err := r.PString()
	if err != nil {
		return err
	}

	rm, err := c.JoinRoom(ctx, id, password)
	if err != nil {
		return replyRoomError(c, err)
	}
	return sendRoomResult(c, RoomOK, rm.ID())
}

// ChangeEquipment applies an equipment action.
func (h *Handlers) ChangeEquipment(ctx context.Context, c *session.Conn, r *packet.Reader) error {
	return c.ChangeEquipment(ctx, r)
}

// LeaveRoom leaves the current room.
func (h *Handlers) LeaveRoom(ctx context.Context, c *session.Conn, _ *packet.Reader) error {
	return c.LeaveRoom(ctx)
}

// BuyItem charges the catalog price in the item's currency, records the
// purchase as a transaction and syncs the new balance and the transaction to
// the client. The shop result carries the balance of the charged currency.
func (h *Handlers) BuyItem(_ context.Context, c *session.Conn, r *packet.Reader) error {
	typeID, err := r.U32()
	if err != nil {
		return err
	}
	item, ok := h.catalog.Item(typeID)
	if !ok {
		return sendShopResult(c, ShopUnknownItem, typeID, c.Pang())
	}

	cookie := item.Currency == catalog.CurrencyCookie
	switch {
	case cookie && !c.RemoveCookie(item.Price):
		return sendShopResult(c, ShopInsufficientCookie, typeID, c.Cookie())
	case !cookie && !c.RemovePang(item.Price):
		return sendShopResult(c, ShopInsufficientPang, typeID, c.Pang())
	}

	now := h.clock()
	var expires time.Time
	if item.Days > 0 {
		expires = now.AddDate(0, 0, item.Days)
	}
	c.PushTransaction(transaction.Record{
		TypeID: item.TypeID,
		Payload: transaction.Timed{
			Action:     transaction.ActionItemAdd,
			Registered: now,
			Expires:    expires,
			NewAmount:  1,
		},
	})
	c.Logger().Info("item purchased",
		zap.Uint32("type_id", item.TypeID),
		zap.Int64("price", item.Price),
		zap.String("currency", item.Currency),
	)

	balance := c.Pang()
	send := c.SendPang
	if cookie {
		balance = c.Cookie()
		send = c.SendCookie
	}
	if err := send(); err != nil {
		return err
	}
	if err := sendShopResult(c, ShopOK, typeID, balance); err != nil {
		return err
	}
	_ = c.FlushTransactions()
	return nil
}

// SyncTransactions flushes pending transactions on demand. Delivery failures
// are logged by the flush and do not fail the frame.
func (h *Handlers) SyncTransactions(_ context.Context, c *session.Conn, _ *packet.Reader) error {
	_ = c.FlushTransactions()
	return nil
}

// replyRoomError answers gameplay rejections with a result code and returns
// any other error to the frame boundary.
func replyRoomError(c *session.Conn, err error) error {
	var code uint8
	switch {
	case errors.Is(err, room.ErrRoomFull):
		code = RoomFull
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrRoomInvalid):
		code = RoomNotFound
	case errors.Is(err, room.ErrBadPassword):
		code = RoomBadPassword
	case errors.Is(err, room.ErrUnknownKind):
		code = RoomUnknownKind
	case errors.Is(err, room.ErrNoRoomIDs), errors.Is(err, room.ErrAlreadyMember), errors.Is(err, session.ErrInvalidState):
		code = RoomUnavailable
	default:
		return err
	}
	c.Logger().Debug("room request rejected", zap.Uint8("code", code), zap.Error(err))
	return sendRoomResult(c, code, 0)
}

func sendRoomResult(c *session.Conn, code uint8, id uint16) error {
	w := packet.NewWriter(packet.OpRoomResult)
	w.WriteU8(code)
	w.WriteU16(id)
	return c.SendPacket(w)
}

func sendShopResult(c *session.Conn, code uint8, typeID uint32, balance int64) error {
	w := packet.NewWriter(packet.OpShopResult)
	w.WriteU8(code)
	w.WriteU32(typeID)
	w.WriteU64(uint64(balance))
	return c.SendPacket(w)
}
