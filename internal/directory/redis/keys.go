package redis

import "fmt"

func (d *Directory) roomKey(id uint16) string {
	return fmt.Sprintf("%s:room:%d", d.cfg.KeyPrefix, id)
}

func (d *Directory) roomIndexKey() string {
	return fmt.Sprintf("%s:idx:rooms", d.cfg.KeyPrefix)
}

func (d *Directory) destroyedRoomIndexKey() string {
	return fmt.Sprintf("%s:idx:rooms:destroyed", d.cfg.KeyPrefix)
}

func (d *Directory) playerKey(connID uint32) string {
	return fmt.Sprintf("%s:player:%d", d.cfg.KeyPrefix, connID)
}

func (d *Directory) playerIndexKey() string {
	return fmt.Sprintf("%s:idx:players", d.cfg.KeyPrefix)
}
