package db

// MongoCanAcceptLiteralZeroTimestamp indicates whether the given server
// version can accept a literal zero timestamp in a write without
// substituting the current time. See SERVER-88750.
func MongoCanAcceptLiteralZeroTimestamp(version Version) bool {
	// bypassEmptyTsReplacement was released with 8.0.
	if version.GTE(Version{8, 0, 0}) {
		return true
	}

	// The flag was backported to the 7.0, 6.0, and 5.0 release trains.
	// No other minor releases received it.
	if version[1] != 0 {
		return false
	}

	switch version[0] {
	case 7:
		return version[2] >= 13
	case 6:
		return version[2] >= 17
	case 5:
		return version[2] >= 29
	default:
		return false
	}
}
