package collab

// PresenceManager tracks cursors and selections per connected client. It is
// owned by the hub goroutine.
type PresenceManager struct {
	presences map[string]*PresencePayload // clientID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

func (pm *PresenceManager) Update(clientID string, p *PresencePayload) {
	pm.presences[clientID] = p
}

func (pm *PresenceManager) Remove(clientID string) {
	delete(pm.presences, clientID)
}

// Prune drops ids that are no longer live from every selection.
func (pm *PresenceManager) Prune(live func(id string) bool) {
	for _, p := range pm.presences {
		kept := p.Selection[:0]
		for _, id := range p.Selection {
			if live(id) {
				kept = append(kept, id)
			}
		}
		p.Selection = kept
	}
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		result[k] = v
	}
	return result
}

func (pm *PresenceManager) StateMessage() *Message {
	return newMessage(TypePresenceState, PresenceStatePayload{Presences: pm.GetAll()})
}
