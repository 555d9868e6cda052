package chatws

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync/atomic"
	"time"
)

const (
	fanoutRetryMin = 500 * time.Millisecond
	fanoutRetryMax = 30 * time.Second
)

// Fanout carries room broadcasts between server instances. Subscribe blocks
// until ctx is done or the subscription fails, calls ready once it is
// receiving and hands every received broadcast to deliver.
type Fanout interface {
	Publish(ctx context.Context, room string, payload []byte) error
	Subscribe(ctx context.Context, ready func(), deliver func(room string, payload []byte)) error
}

// Hub owns room membership. All of its maps are touched only by Run.
type Hub struct {
	rooms       map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}
	register    chan *Client
	unregister  chan *Client
	join        chan roomChange
	leave       chan roomChange
	deliveries  chan delivery
	inspect     chan func()
	fanout      Fanout
	subscribed  atomic.Bool
	retryMin    time.Duration
	done        chan struct{}
}

type roomChange struct {
	client *Client
	room   string
}

// delivery targets either a single client or every member of room.
type delivery struct {
	client  *Client
	room    string
	payload []byte
}

func NewHub(fanout Fanout) *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		join:        make(chan roomChange),
		leave:       make(chan roomChange),
		deliveries:  make(chan delivery, 64),
		inspect:     make(chan func()),
		fanout:      fanout,
		retryMin:    fanoutRetryMin,
		done:        make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.fanout != nil {
		go h.subscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for client := range h.memberships {
				h.drop(client)
			}
			return
		case client := <-h.register:
			if _, ok := h.memberships[client]; !ok {
				h.memberships[client] = make(map[string]struct{})
			}
		case client := <-h.unregister:
			h.drop(client)
		case change := <-h.join:
			h.addToRoom(change.client, change.room)
		case change := <-h.leave:
			h.removeFromRoom(change.client, change.room)
		case d := <-h.deliveries:
			h.deliver(d)
		case fn := <-h.inspect:
			fn()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.submit(h.register, client)
}

func (h *Hub) Unregister(client *Client) {
	h.submit(h.unregister, client)
}

func (h *Hub) Join(client *Client, room string) {
	select {
	case h.join <- roomChange{client: client, room: room}:
	case <-h.done:
	}
}

func (h *Hub) Leave(client *Client, room string) {
	select {
	case h.leave <- roomChange{client: client, room: room}:
	case <-h.done:
	}
}

// Send queues payload for one client behind any earlier hub events.
func (h *Hub) Send(client *Client, payload []byte) {
	h.enqueue(delivery{client: client, payload: payload})
}

// Broadcast delivers payload to every member of room. It goes through the
// fanout only while the fanout subscription is live, since that subscription
// is what delivers to this instance's own clients.
func (h *Hub) Broadcast(ctx context.Context, room string, payload []byte) {
	if h.fanout != nil && h.subscribed.Load() {
		err := h.fanout.Publish(ctx, room, payload)
		if err == nil {
			return
		}
		log.Printf("chat hub fanout publish to %s: %v", room, err)
	}
	h.deliverLocal(room, payload)
}

// subscribe keeps the fanout subscription alive until ctx is done.
func (h *Hub) subscribe(ctx context.Context) {
	backoff := h.retryMin
	for {
		err := h.fanout.Subscribe(ctx, func() {
			h.subscribed.Store(true)
			backoff = h.retryMin
		}, h.deliverLocal)
		h.subscribed.Store(false)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("subscription closed")
		}
		log.Printf("chat hub fanout subscribe: %v, retrying in %s", err, backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, fanoutRetryMax)
	}
}

func (h *Hub) RoomsOf(client *Client) []string {
	var rooms []string
	h.do(func() {
		for room := range h.memberships[client] {
			rooms = append(rooms, room)
		}
	})
	sort.Strings(rooms)
	return rooms
}

func (h *Hub) RoomSize(room string) int {
	var size int
	h.do(func() {
		size = len(h.rooms[room])
	})
	return size
}

func (h *Hub) deliverLocal(room string, payload []byte) {
	h.enqueue(delivery{room: room, payload: payload})
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliveries <- d:
	case <-h.done:
	}
}

func (h *Hub) submit(ch chan *Client, client *Client) {
	select {
	case ch <- client:
	case <-h.done:
	}
}

// do runs fn on the hub goroutine and waits for it.
func (h *Hub) do(fn func()) {
	finished := make(chan struct{})
	select {
	case h.inspect <- func() {
		fn()
		close(finished)
	}:
		<-finished
	case <-h.done:
	}
}

func (h *Hub) addToRoom(client *Client, room string) {
	rooms, ok := h.memberships[client]
	if !ok {
		return
	}
	rooms[room] = struct{}{}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
}

func (h *Hub) removeFromRoom(client *Client, room string) {
	if rooms, ok := h.memberships[client]; ok {
		delete(rooms, room)
	}
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) deliver(d delivery) {
	if d.client != nil {
		if _, ok := h.memberships[d.client]; ok {
			h.push(d.client, d.payload)
		}
		return
	}

	for client := range h.rooms[d.room] {
		h.push(client, d.payload)
	}
}

func (h *Hub) push(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		log.Printf("chat hub: dropping slow client %s of %s", client.ID(), client.UserID())
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	rooms, ok := h.memberships[client]
	if !ok {
		return
	}
	for room := range rooms {
		h.removeFromRoom(client, room)
	}
	delete(h.memberships, client)
	close(client.send)
}
