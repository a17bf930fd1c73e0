package etl

import "fmt"

// Staging tables hold raw input and intermediate results on the session.
const (
	stagingSongsTable  = "staging_songs"
	stagingEventsTable = "staging_events"
	nextSongTable      = "next_song_events"
	storedSongsTable   = "stored_songs"
	storedArtistsTable = "stored_artists"
)

const nextSongPage = "NextSong"

func songsQuery() string {
	return fmt.Sprintf(`SELECT song_id, title, artist_id, year, duration FROM %s`, stagingSongsTable)
}

func artistsQuery() string {
	return fmt.Sprintf(`
SELECT
	artist_id,
	artist_name AS name,
	artist_location AS location,
	artist_latitude AS latitude,
	artist_longitude AS longitude
FROM %s`, stagingSongsTable)
}

func nextSongQuery() string {
	return fmt.Sprintf(`SELECT * FROM %s WHERE page = '%s'`, stagingEventsTable, nextSongPage)
}

// timeQuery derives one row per distinct event timestamp. ts is epoch
// milliseconds and start_time is its UTC wall clock. weekday follows ISO
// numbering, Monday=1 through Sunday=7.
func timeQuery() string {
	return fmt.Sprintf(`
SELECT
	start_time,
	CAST(hour(start_time) AS INTEGER) AS hour,
	CAST(day(start_time) AS INTEGER) AS day,
	CAST(week(start_time) AS INTEGER) AS week,
	CAST(month(start_time) AS INTEGER) AS month,
	CAST(year(start_time) AS INTEGER) AS year,
	CAST(isodow(start_time) AS INTEGER) AS weekday,
	dayname(start_time) AS weekday_name
FROM (
	SELECT DISTINCT epoch_ms(ts) AS start_time
	FROM %s
	WHERE ts IS NOT NULL
)`, nextSongTable)
}

func usersQuery(dedupe bool) string {
	distinct := ""
	if dedupe {
		distinct = "DISTINCT "
	}
	return fmt.Sprintf(`
SELECT %s
	TRY_CAST(userId AS BIGINT) AS user_id,
	firstName AS first_name,
	lastName AS last_name,
	gender,
	level
FROM %s`, distinct, nextSongTable)
}

// songplaysQuery left joins every NextSong event to the stored songs and
// artists on (title, artist name, duration). A key that matches several
// songs resolves to the lowest song_id so each event yields exactly one row.
// songplay_id numbers events from 1 in (ts, sessionId, itemInSession) order.
func songplaysQuery() string {
	return fmt.Sprintf(`
WITH matches AS (
	SELECT s.title, a.name, s.duration, s.song_id, s.artist_id
	FROM %[1]s s
	JOIN (SELECT DISTINCT artist_id, name FROM %[2]s) a ON s.artist_id = a.artist_id
	QUALIFY row_number() OVER (PARTITION BY s.title, a.name, s.duration ORDER BY s.song_id, s.artist_id) = 1
)
SELECT
	row_number() OVER (ORDER BY e.ts, e.sessionId, e.itemInSession) AS songplay_id,
	epoch_ms(e.ts) AS start_time,
	TRY_CAST(e.userId AS BIGINT) AS user_id,
	e.level,
	m.song_id,
	m.artist_id,
	e.sessionId AS session_id,
	e.location,
	e.userAgent AS user_agent,
	CAST(year(epoch_ms(e.ts)) AS INTEGER) AS year,
	CAST(month(epoch_ms(e.ts)) AS INTEGER) AS month
FROM %[3]s e
LEFT JOIN matches m
	ON e.song = m.title
	AND e.artist = m.name
	AND e.length = m.duration`, storedSongsTable, storedArtistsTable, nextSongTable)
}
