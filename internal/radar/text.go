package radar

import (
	"math"
	"strings"

	"gifts_radar/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RenderGiftText собирает HTML-текст уведомления о подарке.
// Результат сохраняется в БД и служит для сравнения:
// если он не изменился, сообщение не редактируется.
func RenderGiftText(g models.Gift) string {
	p := message.NewPrinter(language.English)

	header := "New Telegram Gift!"
	if g.Limited {
		header = "New <u>Limited</u> Telegram Gift!"
	}
	blocks := []string{bold(header), bold(p.Sprintf("⭐ Stars: %d", g.Stars))}

	if g.Limited {
		stock := bold(p.Sprintf("📊 Stock: %d of %d", g.AvailabilityRemains, g.AvailabilityTotal))
		if g.AvailabilityTotal > 0 {
			// Суффикс пропускается только при нулевом остатке; 0.2% выводится как (0%).
			percent := float64(g.AvailabilityRemains) / float64(g.AvailabilityTotal) * 100
			if percent != 0 {
				stock += " " + bold(p.Sprintf("(%d%%)", int(math.Round(percent))))
			}
		}
		blocks = append(blocks, stock)
	}

	blocks = append(blocks, strings.Join(hashtags(g), " "))
	return strings.Join(blocks, "\n\n")
}

func bold(s string) string {
	return "<b>" + s + "</b>"
}

func hashtags(g models.Gift) []string {
	tags := []string{"#instock"}
	if g.Limited && g.AvailabilityRemains == 0 {
		tags[0] = "#soldout"
	}
	if g.Limited {
		tags = append(tags, "#limited")
	}
	return tags
}
