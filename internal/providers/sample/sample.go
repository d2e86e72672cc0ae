package sample

import (
	"hash/crc32"
	"strings"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/providers"
)

// Override — детерминированная заглушка статусов для разработки и тестов.
// Подключается как status-override hook, не как полноценный провайдер:
// движок зовёт его только когда ни один провайдер не ответил.
// Статус выбирается по контрольной сумме трек-номера, так что один и тот же
// номер всегда получает один и тот же статус.
func Override(item models.TrackingItem, order *models.Order) *providers.Payload {
	number := strings.TrimSpace(item.TrackingNumber)
	if number == "" {
		return nil
	}

	states := []providers.Payload{
		{Status: models.StatusInTransit, StatusLabel: "In Transit"},
		{Status: models.StatusOutForDelivery, StatusLabel: "Out for Delivery"},
		{Status: models.StatusDelivered, StatusLabel: "Delivered"},
	}

	idx := crc32.ChecksumIEEE([]byte(strings.ToUpper(number))) % uint32(len(states))
	p := states[idx]
	return &p
}
