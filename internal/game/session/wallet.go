package session

import "github.com/cory-johannsen/fairway/internal/protocol/packet"

// Pang returns the pang balance, or zero before the profile is loaded.
func (c *Conn) Pang() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return 0
	}
	return c.profile.Stats.Pang
}

// Cookie returns the cookie balance, or zero before the profile is loaded.
func (c *Conn) Cookie() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return 0
	}
	return c.profile.Cookie
}

// RemovePang deducts amount from the cached statistics.
//
// Postcondition: Returns false and leaves the balance unchanged when it is
// insufficient or the profile is not loaded.
func (c *Conn) RemovePang(amount int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return false
	}
	return c.profile.Stats.RemovePang(amount)
}

// RemoveCookie deducts amount from the cookie balance.
//
// Postcondition: Returns false and leaves the balance unchanged when it is
// insufficient or the profile is not loaded.
func (c *Conn) RemoveCookie(amount int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil || amount < 0 || c.profile.Cookie < amount {
		return false
	}
	c.profile.Cookie -= amount
	return true
}

// SendPang sends the pang balance to the client.
func (c *Conn) SendPang() error {
	w := packet.NewWriter(packet.OpPangBalance)
	w.WriteU64(uint64(c.Pang()))
	w.WriteU64(0)
	return c.SendPacket(w)
}

// SendCookie sends the cookie balance to the client.
func (c *Conn) SendCookie() error {
	w := packet.NewWriter(packet.OpCookieBalance)
	w.WriteU64(uint64(c.Cookie()))
	return c.SendPacket(w)
}
