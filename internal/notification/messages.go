package notification

import (
	"fmt"
	"strings"
	"time"

	"laundry-booking-backend/internal/model"
)

type texts struct {
	wash, dry string

	confirmTitle, confirmBody string
	cancelTitle, cancelBody   string
	freedTitle, freedBody     string
}

// Placeholders: {date}, {time}, {type}, {num}.
var catalogTexts = map[model.Language]texts{
	model.LanguageRU: {
		wash: "Стирка",
		dry:  "Сушка",

		confirmTitle: "Подтверждение записи",
		confirmBody:  "У вас запись на {date} ({time}), {type} №{num}. Подтвердите её, иначе она будет автоматически отменена.",
		cancelTitle:  "Запись отменена",
		cancelBody:   "Ваша запись на {date} ({time}), {type} №{num}, отменена автоматически, так как не была подтверждена вовремя.",
		freedTitle:   "Освободилось место!",
		freedBody:    "Дата: {date}\nВремя: {time}\n{type} №{num}\n\nУспейте записаться!",
	},
	model.LanguageENG: {
		wash: "Washing",
		dry:  "Drying",

		confirmTitle: "Booking confirmation",
		confirmBody:  "You have a booking on {date} ({time}), {type} #{num}. Please confirm it, otherwise it will be cancelled automatically.",
		cancelTitle:  "Booking cancelled",
		cancelBody:   "Your booking on {date} ({time}), {type} #{num}, was cancelled automatically because it was not confirmed in time.",
		freedTitle:   "Slot available!",
		freedBody:    "Date: {date}\nTime: {time}\n{type} #{num}\n\nBook it now!",
	},
	model.LanguageCN: {
		wash: "洗衣",
		dry:  "干燥",

		confirmTitle: "预约确认",
		confirmBody:  "您预约了 {date}（{time}）的{type} №{num}。请确认，否则预约将被自动取消。",
		cancelTitle:  "预约已取消",
		cancelBody:   "您在 {date}（{time}）的{type} №{num} 预约因未及时确认已被自动取消。",
		freedTitle:   "有空位了！",
		freedBody:    "日期: {date}\n时间: {time}\n{type} №{num}\n\n快去预订吧！",
	},
}

// Catalog renders localized messages. Times are shown in its location.
type Catalog struct {
	loc      *time.Location
	fallback model.Language
}

// NewCatalog creates a catalog. Unknown languages render in fallback.
func NewCatalog(loc *time.Location, fallback model.Language) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	if _, ok := catalogTexts[fallback]; !ok {
		fallback = model.LanguageRU
	}
	return &Catalog{loc: loc, fallback: fallback}
}

func (c *Catalog) texts(lang model.Language) texts {
	if t, ok := catalogTexts[lang]; ok {
		return t
	}
	return catalogTexts[c.fallback]
}

func (c *Catalog) render(lang model.Language, tmpl string, machine model.Machine, start, end time.Time) string {
	t := c.texts(lang)
	category := t.wash
	if machine.Category == model.CategoryDry {
		category = t.dry
	}
	start, end = start.In(c.loc), end.In(c.loc)
	return strings.NewReplacer(
		"{date}", start.Format("02.01.2006"),
		"{time}", start.Format("15:04")+"-"+end.Format("15:04"),
		"{type}", category,
		"{num}", fmt.Sprint(machine.Number),
	).Replace(tmpl)
}

// ConfirmationRequest asks the owner to confirm an upcoming reservation.
func (c *Catalog) ConfirmationRequest(lang model.Language, r model.Reservation) Message {
	t := c.texts(lang)
	return Message{
		Kind:          KindConfirmationRequest,
		Title:         t.confirmTitle,
		Body:          c.render(lang, t.confirmBody, r.Machine, r.StartAt, r.EndAt),
		ReservationID: r.ID,
	}
}

// AutoCancelled tells the owner the reservation expired unconfirmed.
func (c *Catalog) AutoCancelled(lang model.Language, r model.Reservation) Message {
	t := c.texts(lang)
	return Message{
		Kind:          KindAutoCancelled,
		Title:         t.cancelTitle,
		Body:          c.render(lang, t.cancelBody, r.Machine, r.StartAt, r.EndAt),
		ReservationID: r.ID,
	}
}

// SlotFreed announces a freed window to other residents.
func (c *Catalog) SlotFreed(lang model.Language, slot FreedSlot) Message {
	t := c.texts(lang)
	return Message{
		Kind:  KindSlotFreed,
		Title: t.freedTitle,
		Body:  c.render(lang, t.freedBody, slot.Machine, slot.Start, slot.End),
	}
}
