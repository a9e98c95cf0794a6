package embedded

import "encoding/binary"

const (
	listingPrefix      = "listings/"
	requestPrefix      = "requests/"
	ownerIndexPrefix   = "idx/owner/"
	listingIndexPrefix = "idx/listing/"
	requesterIdxPrefix = "idx/requester/"
)

func listingKey(id string) []byte { return []byte(listingPrefix + id) }
func requestKey(id string) []byte { return []byte(requestPrefix + id) }

// indexPrefix builds prefix + uvarint(len(value)) + value. The length
// prefix keeps one value's keys out of another value's range even when
// the values share a prefix or carry arbitrary bytes.
func indexPrefix(prefix, value string) []byte {
	b := make([]byte, 0, len(prefix)+binary.MaxVarintLen64+len(value))
	b = append(b, prefix...)
	b = binary.AppendUvarint(b, uint64(len(value)))
	return append(b, value...)
}

func indexKey(prefix, value, id string) []byte {
	return append(indexPrefix(prefix, value), id...)
}

func ownerIndexKey(email, listingID string) []byte {
	return indexKey(ownerIndexPrefix, email, listingID)
}

func listingIndexKey(listingID, requestID string) []byte {
	return indexKey(listingIndexPrefix, listingID, requestID)
}

func requesterIndexKey(email, requestID string) []byte {
	return indexKey(requesterIdxPrefix, email, requestID)
}

func ownerIndexPrefixFor(email string) []byte       { return indexPrefix(ownerIndexPrefix, email) }
func listingIndexPrefixFor(listingID string) []byte { return indexPrefix(listingIndexPrefix, listingID) }
func requesterIndexPrefixFor(email string) []byte   { return indexPrefix(requesterIdxPrefix, email) }

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// suffixAfter returns the id stored after prefix in an index key.
func suffixAfter(key, prefix []byte) string {
	return string(key[len(prefix):])
}

func listingLockKey(id string) string { return "listing:" + id }
func requestLockKey(id string) string { return "request:" + id }
