package client

import "dungeonsync/protocol"

// Listener is the game side of a session: rendering, chat box, inventory
// widgets. Callbacks run on the session's receive goroutine, one at a time and
// in frame order, with no session lock held.
type Listener interface {
	OnLocalPlayer(p protocol.PlayerState)
	OnPlayerJoined(p protocol.PlayerState)
	OnPlayerUpdated(p protocol.PlayerState)
	OnPlayerLeft(name string)
	OnFocusCleared(name string)
	OnTextMessage(text string)
	OnFloorItemSpawned(item protocol.FloorItem)
	OnFloorItemRemoved(item protocol.FloorItem)
	OnItemPicked(code string)
	OnFire(f protocol.Fire)
	OnHealthChanged(hp int)
	OnRespawn(p protocol.PlayerState)
	OnInventory(pack protocol.ItemPack)
	// OnSessionTerminated fires when an online session ends without Logout.
	OnSessionTerminated(err error)
}

// NopListener ignores every event. Embed it to implement only what you need.
type NopListener struct{}

func (NopListener) OnLocalPlayer(protocol.PlayerState) {}
func (NopListener) OnPlayerJoined(protocol.PlayerState) {}
func (NopListener) OnPlayerUpdated(protocol.PlayerState) {}
func (NopListener) OnPlayerLeft(string) {}
func (NopListener) OnFocusCleared(string) {}
func (NopListener) OnTextMessage(string) {}
func (NopListener) OnFloorItemSpawned(protocol.FloorItem) {}
func (NopListener) OnFloorItemRemoved(protocol.FloorItem) {}
func (NopListener) OnItemPicked(string) {}
func (NopListener) OnFire(protocol.Fire) {}
func (NopListener) OnHealthChanged(int) {}
func (NopListener) OnRespawn(protocol.PlayerState) {}
func (NopListener) OnInventory(protocol.ItemPack) {}
func (NopListener) OnSessionTerminated(error) {}
