package etl

import "github.com/malbeclabs/songlake/pkg/engine"

// SongSchema is the typed layout of one song metadata record.
var SongSchema = engine.MustParseSchema(
	"num_songs:INTEGER",
	"song_id:VARCHAR",
	"title:VARCHAR",
	"artist_id:VARCHAR",
	"artist_name:VARCHAR",
	"artist_location:VARCHAR",
	"artist_latitude:DOUBLE",
	"artist_longitude:DOUBLE",
	"duration:DOUBLE",
	"year:INTEGER",
)

// LogSchema is the typed layout of one activity log event. userId is text
// in the source (empty for logged-out events) and is converted downstream.
var LogSchema = engine.MustParseSchema(
	"artist:VARCHAR",
	"auth:VARCHAR",
	"firstName:VARCHAR",
	"gender:VARCHAR",
	"itemInSession:INTEGER",
	"lastName:VARCHAR",
	"length:DOUBLE",
	"level:VARCHAR",
	"location:VARCHAR",
	"method:VARCHAR",
	"page:VARCHAR",
	"registration:DOUBLE",
	"sessionId:INTEGER",
	"song:VARCHAR",
	"status:INTEGER",
	"ts:BIGINT",
	"userAgent:VARCHAR",
	"userId:VARCHAR",
)

// Table is an output table of the star schema.
type Table struct {
	Name string
	// Partitions are the hive partition columns, in directory order.
	Partitions engine.Schema
}

var (
	SongsTable = Table{
		Name:       "songs",
		Partitions: mustLookup(SongSchema, "year", "artist_id"),
	}
	ArtistsTable = Table{Name: "artists"}
	UsersTable   = Table{Name: "users"}
	TimeTable    = Table{
		Name:       "time",
		Partitions: engine.MustParseSchema("year:INTEGER", "month:INTEGER"),
	}
	SongplaysTable = Table{
		Name:       "songplays",
		Partitions: engine.MustParseSchema("year:INTEGER", "month:INTEGER"),
	}
)

// Tables lists every output table in write order.
var Tables = []Table{SongsTable, ArtistsTable, TimeTable, UsersTable, SongplaysTable}

// URI returns the table's directory under the output root.
func (t Table) URI(root string) string {
	return engine.JoinURI(root, t.Name)
}

func mustLookup(s engine.Schema, names ...string) engine.Schema {
	sub, err := s.Lookup(names...)
	if err != nil {
		panic(err)
	}
	return sub
}
