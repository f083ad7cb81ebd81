package storage

import (
	"sort"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

func sortByCreatedAt(records []*relay.RequestRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].RequestID < records[j].RequestID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
