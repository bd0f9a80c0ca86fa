package views

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Supported page languages, in matcher preference order.
var (
	supported = []language.Tag{language.BrazilianPortuguese, language.English}
	matcher   = language.NewMatcher(supported)
)

// messages are the fixed strings of one page language.
type messages struct {
	lang        string
	months      [12]string
	loadMore    string
	noPosts     string
	previous    string
	next        string
	loading     string
	exitPreview string
	readingTime string // minutes format
	editedOn    string // date, time format
	notFound    string
	notFoundMsg string
	serverError string
	serverMsg   string
	backHome    string
}

var catalog = []messages{
	{
		lang:        "pt-BR",
		months:      [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
		loadMore:    "Carregar mais posts",
		noPosts:     "Nenhum post publicado ainda.",
		previous:    "Post anterior",
		next:        "Próximo post",
		loading:     "Carregando...",
		exitPreview: "Sair do modo Preview",
		readingTime: "%d min",
		editedOn:    "* editado em %s, às %s",
		notFound:    "Página não encontrada",
		notFoundMsg: "O post que você procura não existe ou foi removido.",
		serverError: "Algo deu errado",
		serverMsg:   "Não foi possível carregar esta página. Tente novamente em instantes.",
		backHome:    "Voltar para o início",
	},
	{
		lang:        "en",
		months:      [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		loadMore:    "Load more posts",
		noPosts:     "No posts published yet.",
		previous:    "Previous post",
		next:        "Next post",
		loading:     "Loading...",
		exitPreview: "Exit preview",
		readingTime: "%d min",
		editedOn:    "* edited on %s, at %s",
		notFound:    "Page not found",
		notFoundMsg: "The post you are looking for does not exist or was removed.",
		serverError: "Something went wrong",
		serverMsg:   "This page could not be loaded. Please try again shortly.",
		backHome:    "Back to home",
	},
}

func lookup(locale string) messages {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	_, idx, _ := matcher.Match(tag)
	return catalog[idx]
}

// FormatDate formats t as "dd MMM yyyy" in the given locale (pt-BR unless
// the locale matches English). A nil time formats as "".
func FormatDate(t *time.Time, locale string) string {
	if t == nil {
		return ""
	}
	return lookup(locale).date(*t)
}

func (m messages) date(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), m.months[t.Month()-1], t.Year())
}

// editedLine returns the "edited on" note for a post updated after it was
// first published, or "".
func (m messages) editedLine(published, updated *time.Time) string {
	if published == nil || updated == nil || !updated.After(*published) {
		return ""
	}
	return fmt.Sprintf(m.editedOn, m.date(*updated), updated.Format("15:04"))
}
