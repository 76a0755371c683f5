package domain

// MenuItem — read-only срез позиции меню, который видит ядро букинга.
// Редактирование меню живёт во внешнем CRUD; здесь меню нужно только
// для валидации позиций при добавлении в счёт.
type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	PriceMinor   int64
	Station      Station
	IsAvailable  bool
}
