package services

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"game-match-system/models"

	"github.com/google/uuid"
)

// Result is the structured acknowledgment returned to the originating
// connection for every coordinator operation. Failures never propagate as
// process-fatal errors; they come back here after best-effort cleanup.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	StatusSuccess      = "SUCCESS"
	StatusPending      = "PENDING"
	StatusDisconnected = "DISCONNECTED"
	StatusError        = "ERROR"
)

const (
	// winningScore ends the match when a confirmed report reaches it.
	winningScore = 4
	// heartbeatSkewLimit is the maximum tolerated gap between the two peers'
	// connected heartbeats before the quieter side counts as disconnected.
	heartbeatSkewLimit = 3000 * time.Millisecond

	speedNormal  = 0.15
	speedHard    = 0.3
	travelBudget = 1280.0

	EventMatched = "matched"
	EventStart   = "start"
	EventMove    = "move"
	EventScore   = "score"
	EventEnd     = "end"
)

// RoomIndex exposes the connection registry's room membership to the
// coordinator without reaching into the transport layer.
type RoomIndex interface {
	Join(connID, roomID string)
	Leave(connID, roomID string)
	Members(roomID string) []string
	Opponent(roomID, connID string) (string, bool)
	UserOf(connID string) (string, bool)
}

// Broadcaster pushes typed events to connections. Delivery is fire and
// forget; the coordinator never fails an operation on a missed push.
type Broadcaster interface {
	SendTo(connID, event string, payload any)
	SendToRoom(roomID, event string, payload any)
}

type matchedPayload struct {
	Room string `json:"room"`
}

type ballPayload struct {
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
}

type startPayload struct {
	Ball ballPayload `json:"ball"`
}

type endPayload struct {
	State    string       `json:"state"`
	Me       *UserProfile `json:"me,omitempty"`
	Opponent *UserProfile `json:"opponent,omitempty"`
}

// MatchCoordinator is the state machine driving a session from QUEUED through
// PLAYING to ENDED. It owns all cross-session invariants: pairing is
// exclusive per queue, ready/score transitions are exclusive per room, and
// history finalization happens exactly once per match.
type MatchCoordinator struct {
	sessions SessionStore
	history  HistoryRecorder
	queue    *MatchQueue
	registry RoomIndex
	cast     Broadcaster
	users    UserDirectory

	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
}

func NewMatchCoordinator(
	sessions SessionStore,
	history HistoryRecorder,
	queue *MatchQueue,
	registry RoomIndex,
	cast Broadcaster,
	users UserDirectory,
) *MatchCoordinator {
	return &MatchCoordinator{
		sessions:  sessions,
		history:   history,
		queue:     queue,
		registry:  registry,
		cast:      cast,
		users:     users,
		roomLocks: make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex guarding ready/score transitions for a room.
func (mc *MatchCoordinator) roomLock(roomID string) *sync.Mutex {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	lock, ok := mc.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		mc.roomLocks[roomID] = lock
	}
	return lock
}

func (mc *MatchCoordinator) dropRoomLock(roomID string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.roomLocks, roomID)
}

func queueFor(mode string) string {
	return "queue:" + mode
}

func normalizeMode(mode string) string {
	if mode == models.ModeNormal {
		return models.ModeNormal
	}
	return models.ModeHard
}

// HandleQueue registers the connection in the waiting queue and pairs the two
// earliest entries once a second arrives. The queue mutex makes DequeueBoth
// exclusive, so two racing queue events cannot both pair the same two
// connections.
func (mc *MatchCoordinator) HandleQueue(ctx context.Context, connID, userID, mode string) Result {
	mode = normalizeMode(mode)
	queueID := queueFor(mode)

	// a user holds at most one live session; any queue attempt while one
	// exists is a conflict, even on the same connection
	existing, err := mc.sessions.GetByUserID(ctx, userID)
	if err != nil {
		return Result{Status: StatusError, Message: "session lookup failed"}
	}
	if existing != nil {
		return Result{Status: StatusError, Message: "already in a match"}
	}

	mc.queue.Enqueue(queueID, connID)
	if err := mc.users.Playing(ctx, userID); err != nil {
		log.Printf("Failed to mark user %s playing: %v", userID, err)
	}

	first, second, ok := mc.queue.DequeueBoth(queueID)
	if !ok {
		// lone entry waits for the next arrival
		return Result{Status: StatusSuccess}
	}

	roomID := uuid.NewString()
	now := time.Now()
	for _, cid := range []string{first, second} {
		// every connection is authenticated before dispatch, so the user can
		// be bound at creation; the connected-event fallback still rebinds
		// after reconnects
		uid, _ := mc.registry.UserOf(cid)
		session := &models.Session{
			ID:           uuid.NewString(),
			ConnectionID: cid,
			UserID:       uid,
			Mode:         mode,
			RoomID:       roomID,
			UpdatedAt:    now,
		}
		if err := mc.sessions.Create(ctx, session); err != nil {
			log.Printf("Failed to create session for %s: %v", cid, err)
			return mc.abortPairing(ctx, roomID, first, second, "failed to create session")
		}
	}

	mc.registry.Join(first, roomID)
	mc.registry.Join(second, roomID)

	mc.cast.SendTo(first, EventMatched, matchedPayload{Room: roomID})
	mc.cast.SendTo(second, EventMatched, matchedPayload{Room: roomID})

	return Result{Status: StatusSuccess}
}

// abortPairing tears down a half-created pair so a storage failure never
// strands one connection inside a dead room.
func (mc *MatchCoordinator) abortPairing(ctx context.Context, roomID, first, second, message string) Result {
	for _, cid := range []string{first, second} {
		session, err := mc.sessions.GetByConnectionID(ctx, cid)
		if err != nil || session == nil {
			continue
		}
		if session.RoomID == roomID {
			if err := mc.sessions.Delete(ctx, session.ID); err != nil {
				log.Printf("Failed to delete session %s during pairing abort: %v", session.ID, err)
			}
		}
	}
	mc.registry.Leave(first, roomID)
	mc.registry.Leave(second, roomID)
	return Result{Status: StatusError, Message: message}
}

// HandleLeave removes a queued connection, or tears down its active session
// and notifies the opponent. Repeated leaves are a no-op success.
func (mc *MatchCoordinator) HandleLeave(ctx context.Context, connID, userID string) Result {
	if mc.queue.Remove(connID) {
		if userID != "" {
			if err := mc.users.Online(ctx, userID); err != nil {
				log.Printf("Failed to mark user %s online: %v", userID, err)
			}
		}
		return Result{Status: StatusSuccess}
	}

	session, err := mc.sessions.GetByConnectionID(ctx, connID)
	if err != nil {
		return Result{Status: StatusError, Message: "session lookup failed"}
	}
	if session == nil {
		// nothing to leave
		return Result{Status: StatusSuccess}
	}

	if opponent, ok := mc.registry.Opponent(session.RoomID, connID); ok {
		mc.cast.SendTo(opponent, EventEnd, endPayload{State: StatusDisconnected})
	}
	mc.teardown(ctx, session)
	mc.registry.Leave(connID, session.RoomID)

	return Result{Status: StatusSuccess}
}

// HandleDisconnect runs the leave cleanup when a socket closes without a
// leave event. The opponent is not notified here; it learns of the absence
// through its own heartbeat check.
func (mc *MatchCoordinator) HandleDisconnect(ctx context.Context, connID string) {
	mc.queue.Remove(connID)

	session, err := mc.sessions.GetByConnectionID(ctx, connID)
	if err != nil || session == nil {
		return
	}
	mc.teardown(ctx, session)
	mc.registry.Leave(connID, session.RoomID)
}

// teardown deletes the session and, when a user is bound, the dangling
// PENDING history row, then flips presence back to online. Cleanup is best
// effort: failures are logged, never returned.
func (mc *MatchCoordinator) teardown(ctx context.Context, session *models.Session) {
	if err := mc.sessions.Delete(ctx, session.ID); err != nil {
		log.Printf("Failed to delete session %s: %v", session.ID, err)
	}
	if session.UserID != "" {
		if err := mc.history.DeleteFirstPending(ctx, session.ID, session.UserID); err != nil {
			log.Printf("Failed to delete pending history for session %s: %v", session.ID, err)
		}
		if err := mc.users.Online(ctx, session.UserID); err != nil {
			log.Printf("Failed to mark user %s online: %v", session.UserID, err)
		}
	}
}

// HandleMatched confirms the room join after a matched push and rebinds the
// session to the confirming connection, which also covers reconnects that
// arrive with a new transport identifier.
func (mc *MatchCoordinator) HandleMatched(ctx context.Context, connID, userID, roomID string) Result {
	mc.registry.Join(connID, roomID)

	if err := mc.users.Playing(ctx, userID); err != nil {
		log.Printf("Failed to mark user %s playing: %v", userID, err)
	}

	session, err := mc.sessions.GetByUserID(ctx, userID)
	if err != nil {
		return Result{Status: StatusError, Message: "session lookup failed"}
	}
	if session == nil {
		return Result{Status: StatusError, Message: "Game not found"}
	}

	err = mc.sessions.Updates(ctx, session.ID, map[string]interface{}{
		"connection_id": connID,
		"room_id":       roomID,
	})
	if err != nil {
		return Result{Status: StatusError, Message: "failed to bind connection"}
	}

	return Result{Status: StatusSuccess}
}

// HandleConnected is the heartbeat. It refreshes this side's timestamp and
// judges the opponent disconnected when the two heartbeats drift more than
// heartbeatSkewLimit apart. The check runs on every connected event from
// either peer; there is no server-side timer.
func (mc *MatchCoordinator) HandleConnected(ctx context.Context, connID, userID, roomID string) Result {
	session, err := mc.sessions.GetByConnectionID(ctx, connID)
	if err != nil {
		return Result{Status: StatusError, Message: "session lookup failed"}
	}
	if session == nil {
		// first heartbeat after matched may still carry the old connection
		// id; fall back to the bound user
		session, err = mc.sessions.GetByUserID(ctx, userID)
		if err != nil || session == nil {
			return mc.disconnectLocal(ctx, connID, nil)
		}
		if err := mc.sessions.Updates(ctx, session.ID, map[string]interface{}{"connection_id": connID}); err != nil {
			log.Printf("Failed to rebind connection for session %s: %v", session.ID, err)
		}
		session.ConnectionID = connID
	} else if session.UserID == "" {
		if err := mc.sessions.Updates(ctx, session.ID, map[string]interface{}{"user_id": userID}); err != nil {
			log.Printf("Failed to bind user for session %s: %v", session.ID, err)
		}
		session.UserID = userID
	}

	now := time.Now()
	if err := mc.sessions.Updates(ctx, session.ID, map[string]interface{}{"updated_at": now}); err != nil {
		log.Printf("Failed to refresh heartbeat for session %s: %v", session.ID, err)
	}
	session.UpdatedAt = now

	var opponentSession *models.Session
	if opponent, ok := mc.registry.Opponent(roomID, connID); ok {
		opponentSession, err = mc.sessions.GetByConnectionID(ctx, opponent)
		if err != nil {
			return Result{Status: StatusError, Message: "session lookup failed"}
		}
	}
	if opponentSession == nil {
		return mc.disconnectLocal(ctx, connID, session)
	}

	skew := session.UpdatedAt.Sub(opponentSession.UpdatedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > heartbeatSkewLimit {
		return mc.disconnectLocal(ctx, connID, session)
	}

	return Result{Status: StatusSuccess}
}

// disconnectLocal ends the match for the calling side: it receives the
// DISCONNECTED end event and its session and pending history are cleaned up.
func (mc *MatchCoordinator) disconnectLocal(ctx context.Context, connID string, session *models.Session) Result {
	mc.cast.SendTo(connID, EventEnd, endPayload{State: StatusDisconnected})
	if session != nil {
		mc.teardown(ctx, session)
		mc.registry.Leave(connID, session.RoomID)
	}
	return Result{Status: StatusDisconnected}
}

// HandleReady marks the caller ready and starts the match once both peers
// are. The room lock closes the race where both ready events observe a
// not-yet-ready opponent and neither side triggers the start.
func (mc *MatchCoordinator) HandleReady(ctx context.Context, connID, roomID string) Result {
	lock := mc.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	session, err := mc.sessions.GetByConnectionID(ctx, connID)
	if err != nil {
		return Result{Status: StatusError, Message: "session lookup failed"}
	}
	if session == nil {
		return Result{Status: StatusError, Message: "Game not found"}
	}

	if !session.Ready {
		if err := mc.sessions.Updates(ctx, session.ID, map[string]interface{}{"ready": true}); err != nil {
			return Result{Status: StatusError, Message: "failed to set ready"}
		}
		session.Ready = true
	}

	opponent, ok := mc.registry.Opponent(roomID, connID)
	if !ok {
		return Result{Status: StatusSuccess}
	}
	opponentSession, err := mc.sessions.GetByConnectionID(ctx, opponent)
	if err != nil {
		return Result{Status: StatusError, Message: "session lookup failed"}
	}
	if opponentSession == nil || !opponentSession.Ready {
		// wait for the peer
		return Result{Status: StatusSuccess}
	}

	// both ready: reset the flags before the next round and serve the ball
	if err := mc.sessions.Updates(ctx, session.ID, map[string]interface{}{"ready": false}); err != nil {
		return Result{Status: StatusError, Message: "failed to reset ready"}
	}
	if err := mc.sessions.Updates(ctx, opponentSession.ID, map[string]interface{}{"ready": false}); err != nil {
		return Result{Status: StatusError, Message: "failed to reset ready"}
	}

	vx, vy := startVelocity(session.Mode)
	mc.cast.SendTo(connID, EventStart, startPayload{Ball: ballPayload{VelocityX: vx, VelocityY: vy}})
	mc.cast.SendTo(opponent, EventStart, startPayload{Ball: ballPayload{VelocityX: -vx, VelocityY: -vy}})

	return Result{Status: StatusSuccess}
}

// startVelocity computes the serve vector. The horizontal component is drawn
// from ±[150,750] scaled by the mode's speed factor; the vertical component
// spends the rest of the 1280-unit travel budget. The two peers receive exact
// sign-inverses of this vector so the serve is mirrored on each client.
func startVelocity(mode string) (float64, float64) {
	speed := speedNormal
	if mode == models.ModeHard {
		speed = speedHard
	}

	vx := (rand.Float64()*600 + 150) * speed
	if rand.Float64() < 0.5 {
		vx = -vx
	}

	vy := (travelBudget - math.Abs(vx)) * speed
	if rand.Float64() >= 0.5 {
		vy = (math.Abs(vx) - travelBudget) * speed
	}

	return vx, vy
}

// HandleMove relays the payload unchanged to the opponent. No state is
// touched; a missing opponent makes the relay a silent no-op.
func (mc *MatchCoordinator) HandleMove(ctx context.Context, connID, roomID string, payload json.RawMessage) Result {
	if opponent, ok := mc.registry.Opponent(roomID, connID); ok {
		mc.cast.SendTo(opponent, EventMove, payload)
	}
	return Result{Status: StatusSuccess}
}

// HandleScore relays the report to the opponent, keeps both sides' PENDING
// history rows in sync from the reporter's value, and finalizes the match
// when the report reaches the winning threshold. The side whose opponent
// scored four loses: the reporter's row resolves LOSE, the opponent's WIN.
func (mc *MatchCoordinator) HandleScore(ctx context.Context, connID, userID, roomID, reported, state string, payload json.RawMessage) Result {
	lock := mc.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	opponent, _ := mc.registry.Opponent(roomID, connID)

	session, err := mc.sessions.GetByConnectionID(ctx, connID)
	if err != nil {
		return Result{Status: StatusError, Message: "session lookup failed"}
	}
	opponentSession, err := mc.sessions.GetByConnectionID(ctx, opponent)
	if err != nil {
		return Result{Status: StatusError, Message: "session lookup failed"}
	}
	if session == nil || opponentSession == nil {
		return Result{Status: StatusError, Message: "Game not found"}
	}

	if opponent != "" {
		mc.cast.SendTo(opponent, EventScore, payload)
	}

	if state != "confirmed" {
		// preview only, nothing recorded
		return Result{Status: StatusPending}
	}

	score, err := strconv.Atoi(reported)
	if err != nil {
		return Result{Status: StatusError, Message: "invalid score"}
	}

	if score == winningScore {
		mc.finishMatch(ctx, connID, opponent, roomID, session, opponentSession)
	}

	mine, theirs, err := mc.recordScore(ctx, session, opponentSession, score)
	if err != nil {
		return Result{Status: StatusError, Message: "failed to record score"}
	}

	if score == winningScore {
		if err := mc.history.Updates(ctx, mine.ID, map[string]interface{}{"result": models.ResultLose}); err != nil {
			log.Printf("Failed to finalize history %s: %v", mine.ID, err)
		}
		if err := mc.history.Updates(ctx, theirs.ID, map[string]interface{}{"result": models.ResultWin}); err != nil {
			log.Printf("Failed to finalize history %s: %v", theirs.ID, err)
		}
		if err := mc.sessions.Delete(ctx, session.ID); err != nil {
			log.Printf("Failed to delete session %s: %v", session.ID, err)
		}
		if err := mc.sessions.Delete(ctx, opponentSession.ID); err != nil {
			log.Printf("Failed to delete session %s: %v", opponentSession.ID, err)
		}
		for _, uid := range []string{session.UserID, opponentSession.UserID} {
			if uid == "" {
				continue
			}
			if err := mc.users.Online(ctx, uid); err != nil {
				log.Printf("Failed to mark user %s online: %v", uid, err)
			}
		}
		mc.dropRoomLock(roomID)
	}

	return Result{Status: StatusSuccess}
}

// finishMatch clears the room and pushes the RESULT end event to both peers,
// each seeing the opponent's public display fields from its own perspective.
func (mc *MatchCoordinator) finishMatch(ctx context.Context, connID, opponent, roomID string, session, opponentSession *models.Session) {
	me, err := mc.users.Get(ctx, session.UserID)
	if err != nil {
		log.Printf("Failed to fetch profile for user %s: %v", session.UserID, err)
	}
	other, err := mc.users.Get(ctx, opponentSession.UserID)
	if err != nil {
		log.Printf("Failed to fetch profile for user %s: %v", opponentSession.UserID, err)
	}

	mc.registry.Leave(connID, roomID)
	mc.registry.Leave(opponent, roomID)

	mc.cast.SendTo(connID, EventEnd, endPayload{State: "RESULT", Me: me, Opponent: other})
	mc.cast.SendTo(opponent, EventEnd, endPayload{State: "RESULT", Me: other, Opponent: me})
}

// recordScore finds or creates the PENDING row for each side and applies the
// reporter's value: it fills the opponent column of the reporter's own row
// and the owner column of the opponent's row, so both rows converge from each
// side's own reports.
func (mc *MatchCoordinator) recordScore(ctx context.Context, session, opponentSession *models.Session, score int) (*models.MatchHistory, *models.MatchHistory, error) {
	mine, err := mc.history.FirstPending(ctx, session.ID, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if mine == nil {
		mine = &models.MatchHistory{
			ID:           uuid.NewString(),
			SessionID:    session.ID,
			Player1ID:    session.UserID,
			Player2ID:    opponentSession.UserID,
			Mode:         session.Mode,
			Player1Score: 0,
			Player2Score: score,
			Result:       models.ResultPending,
		}
		if err := mc.history.Create(ctx, mine); err != nil {
			return nil, nil, err
		}
	} else {
		if err := mc.history.Updates(ctx, mine.ID, map[string]interface{}{"player2_score": score}); err != nil {
			return nil, nil, err
		}
		mine.Player2Score = score
	}

	theirs, err := mc.history.FirstPending(ctx, opponentSession.ID, opponentSession.UserID)
	if err != nil {
		return nil, nil, err
	}
	if theirs == nil {
		theirs = &models.MatchHistory{
			ID:           uuid.NewString(),
			SessionID:    opponentSession.ID,
			Player1ID:    opponentSession.UserID,
			Player2ID:    session.UserID,
			Mode:         opponentSession.Mode,
			Player1Score: score,
			Player2Score: 0,
			Result:       models.ResultPending,
		}
		if err := mc.history.Create(ctx, theirs); err != nil {
			return nil, nil, err
		}
	} else {
		if err := mc.history.Updates(ctx, theirs.ID, map[string]interface{}{"player1_score": score}); err != nil {
			return nil, nil, err
		}
		theirs.Player1Score = score
	}

	return mine, theirs, nil
}
