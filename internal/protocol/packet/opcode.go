package packet

import "fmt"

// Opcode is the 2-byte tag at the start of every frame.
type Opcode uint16

// Client → server opcodes.
const (
	OpLogin           Opcode = 0x0002
	OpEnterLobby      Opcode = 0x0004
	OpRoomChat        Opcode = 0x0006
	OpCreateRoom      Opcode = 0x0008
	OpJoinRoom        Opcode = 0x0009
	OpChangeEquipment Opcode = 0x000C
	OpLeaveRoom       Opcode = 0x000F
	OpBuyItem         Opcode = 0x001D
	OpSyncRequest     Opcode = 0x0216
)

// Server → client opcodes.
const (
	OpLoginResult      Opcode = 0x0010
	OpChatMessage      Opcode = 0x0040
	OpRoomMember       Opcode = 0x0048
	OpRoomResult       Opcode = 0x0049
	OpEquipmentChanged Opcode = 0x004B
	OpRoomLeft         Opcode = 0x004C
	OpShopResult       Opcode = 0x0068
	OpCookieBalance    Opcode = 0x0096
	OpPangBalance      Opcode = 0x00C8
	OpTransactionSync  Opcode = 0x0216
)

var opcodeNames = map[Opcode]string{
	OpLogin:            "login",
	OpEnterLobby:       "enter_lobby",
	OpRoomChat:         "room_chat",
	OpCreateRoom:       "create_room",
	OpJoinRoom:         "join_room",
	OpChangeEquipment:  "change_equipment",
	OpLeaveRoom:        "leave_room",
	OpBuyItem:          "buy_item",
	OpSyncRequest:      "transaction_sync",
	OpLoginResult:      "login_result",
	OpChatMessage:      "chat_message",
	OpRoomMember:       "room_member",
	OpRoomResult:       "room_result",
	OpEquipmentChanged: "equipment_changed",
	OpRoomLeft:         "room_left",
	OpShopResult:       "shop_result",
	OpCookieBalance:    "cookie_balance",
	OpPangBalance:      "pang_balance",
}

// String returns a readable name for known opcodes and the hex value otherwise.
// OpSyncRequest and OpTransactionSync share a value and print as transaction_sync.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", uint16(o))
}
