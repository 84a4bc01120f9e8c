package resolver

// RecentStickerLimit bounds a guild's recent-stickers list.
const RecentStickerLimit = 3

// UpdateRecents moves value to the front of the list, dropping any earlier
// occurrence and truncating to the limit. The input is not modified.
func UpdateRecents(list []string, value string) []string {
	updated := make([]string, 0, len(list)+1)
	updated = append(updated, value)
	for _, v := range list {
		if v != value {
			updated = append(updated, v)
		}
	}
	if len(updated) > RecentStickerLimit {
		updated = updated[:RecentStickerLimit]
	}
	return updated
}
