package packet

// Inbound packet types (client → server).
const (
	CPing               = "PING"
	CAuth               = "AUTH"
	CMoveXY             = "MOVEXY"
	CTeleportXY         = "TELEPORTXY"
	CChat               = "CHAT"
	CTyping             = "TYPING"
	CStopTyping         = "STOPTYPING"
	CClientConfig       = "CLIENTCONFIG"
	CSelectPlayer       = "SELECTPLAYER"
	CTargetClosest      = "TARGETCLOSEST"
	CInspectPlayer      = "INSPECTPLAYER"
	CNoclip             = "NOCLIP"
	CStealth            = "STEALTH"
	CAttack             = "ATTACK"
	CCommand            = "COMMAND"
	CKickPartyMember    = "KICK_PARTY_MEMBER"
	CLeaveParty         = "LEAVE_PARTY"
	CInviteParty        = "INVITE_PARTY"
	CAddFriend          = "ADD_FRIEND"
	CRemoveFriend       = "REMOVE_FRIEND"
	CInvitationResponse = "INVITATION_RESPONSE"
	CLogout             = "LOGOUT"
	CDisconnect         = "DISCONNECT"
	CBenchmark          = "BENCHMARK"
)

// Outbound packet types (server → client).
const (
	SPing             = "PING"
	SLoginSuccess     = "LOGIN_SUCCESS"
	SLoginFailed      = "LOGIN_FAILED"
	SLoadMap          = "LOAD_MAP"
	SSpawnPlayer      = "SPAWN_PLAYER"
	SLoadPlayers      = "LOAD_PLAYERS"
	SDisconnectPlayer = "DISCONNECT_PLAYER"
	SConnectionCount  = "CONNECTION_COUNT"
	SRateLimited      = "RATE_LIMITED"
	SNotify           = "NOTIFY"
	SUpdateStats      = "UPDATESTATS"
	SRevive           = "REVIVE"
	SUpdateXP         = "UPDATE_XP"
	SAnimation        = "ANIMATION"
	SAudio            = "AUDIO"
	SMusic            = "MUSIC"
	SQuestLog         = "QUESTLOG"
	SUpdateFriends    = "UPDATE_FRIENDS"
	SUpdateParty      = "UPDATE_PARTY"
	SInvitation       = "INVITATION"
	SReconnect        = "RECONNECT"
	SInventory        = "INVENTORY"
	SClientConfig     = "CLIENTCONFIG"
	SChat             = "CHAT"
	STyping           = "TYPING"
	SStopTyping       = "STOPTYPING"
	SMoveXY           = "MOVEXY"
	STeleportXY       = "TELEPORTXY"
	SSelectPlayer     = "SELECTPLAYER"
	SInspectPlayer    = "INSPECTPLAYER"
	SBenchmark        = "BENCHMARK"
)

// Topic names for process-wide publish/subscribe channels. Every connection
// joins both on open and leaves on close.
const (
	TopicConnectionCount = "CONNECTION_COUNT"
	TopicBroadcast       = "BROADCAST"
)

// Movement directions carried by MOVEXY. ABORT stops the active mover.
const (
	DirUp        = "UP"
	DirUpRight   = "UPRIGHT"
	DirRight     = "RIGHT"
	DirDownRight = "DOWNRIGHT"
	DirDown      = "DOWN"
	DirDownLeft  = "DOWNLEFT"
	DirLeft      = "LEFT"
	DirUpLeft    = "UPLEFT"
	DirAbort     = "ABORT"
)

// HeadingOf maps a MOVEXY direction to a heading 0-7 (0=N, clockwise).
// Returns -1 for ABORT or anything unrecognised.
func HeadingOf(dir string) int {
	switch dir {
	case DirUp:
		return 0
	case DirUpRight:
		return 1
	case DirRight:
		return 2
	case DirDownRight:
		return 3
	case DirDown:
		return 4
	case DirDownLeft:
		return 5
	case DirLeft:
		return 6
	case DirUpLeft:
		return 7
	}
	return -1
}

// ---- Typed inbound payloads ----

type AuthPayload struct {
	Name  string `json:"name"`
	Token string `json:"token"`
	Agent string `json:"agent,omitempty"`
}

type MovePayload struct {
	Dir string `json:"dir"`
}

type TeleportPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type NamePayload struct {
	Name string `json:"name"`
}

type CommandPayload struct {
	Command string `json:"command"`
}

type InvitationResponsePayload struct {
	ID     int32 `json:"id"`
	Accept bool  `json:"accept"`
}

type BenchmarkPayload struct {
	Count int `json:"count"`
}
