package services

// Broadcaster pushes synchronizer events to connected clients.
type Broadcaster interface {
	BroadcastBetEvent(ev Event)
}

func AttachBroadcaster(s *Synchronizer, b Broadcaster) []ListenerID {
	return s.SubscribeAll(b.BroadcastBetEvent)
}
