package stats

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
)

var ageGroupNames = map[string]string{
	"1": "1-2 года",
	"2": "3-5 лет",
	"3": "6-8 лет",
}

const topGenreCount = 5

type GenreCount struct {
	Genre string
	Count int
}

type AgeCount struct {
	Group string
	Name  string
	Count int
}

type Report struct {
	TotalUsers int
	TotalTales int
	AgeGroups  []AgeCount
	TopGenres  []GenreCount
}

// BuildReport aggregates both CSV logs. Genre ties are broken by
// first-encountered order in the tale log.
func (s *Stats) BuildReport(ctx context.Context) (*Report, error) {
	tracer := otel.Tracer("stats/BuildReport")
	_, span := tracer.Start(ctx, "BuildReport")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{}

	userRows, err := readRows(s.userPath)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, row := range userRows {
		if len(row) < len(userHeader) {
			continue
		}
		report.TotalUsers++
		count, _ := strconv.Atoi(row[6])
		report.TotalTales += count
	}

	taleRows, err := readRows(s.talePath)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ageCounts := map[string]int{}
	genreCounts := map[string]int{}
	genreFirstSeen := map[string]int{}

	for i, row := range taleRows {
		if len(row) < 4 {
			continue
		}
		age, genre := row[2], row[3]
		ageCounts[age]++
		if _, seen := genreCounts[genre]; !seen {
			genreFirstSeen[genre] = i
		}
		genreCounts[genre]++
	}

	ageKeys := make([]string, 0, len(ageCounts))
	for key := range ageCounts {
		ageKeys = append(ageKeys, key)
	}
	sort.Strings(ageKeys)
	for _, key := range ageKeys {
		name, ok := ageGroupNames[key]
		if !ok {
			name = key
		}
		report.AgeGroups = append(report.AgeGroups, AgeCount{Group: key, Name: name, Count: ageCounts[key]})
	}

	genres := make([]GenreCount, 0, len(genreCounts))
	for genre, count := range genreCounts {
		genres = append(genres, GenreCount{Genre: genre, Count: count})
	}
	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Count != genres[j].Count {
			return genres[i].Count > genres[j].Count
		}
		return genreFirstSeen[genres[i].Genre] < genreFirstSeen[genres[j].Genre]
	})
	if len(genres) > topGenreCount {
		genres = genres[:topGenreCount]
	}
	report.TopGenres = genres

	return report, nil
}

// FormatReport renders the aggregate report for the admin chat.
func FormatReport(r *Report) string {
	var b strings.Builder

	b.WriteString("📊 Статистика бота:\n\n")
	fmt.Fprintf(&b, "👥 Всего пользователей: %d\n", r.TotalUsers)
	fmt.Fprintf(&b, "📖 Всего сгенерировано сказок: %d\n", r.TotalTales)

	b.WriteString("\nВозрастные группы:\n")
	for _, age := range r.AgeGroups {
		fmt.Fprintf(&b, " • %s: %d\n", age.Name, age.Count)
	}

	b.WriteString("\nПопулярные жанры:\n")
	for _, genre := range r.TopGenres {
		fmt.Fprintf(&b, " • %s: %d\n", genre.Genre, genre.Count)
	}

	return b.String()
}
