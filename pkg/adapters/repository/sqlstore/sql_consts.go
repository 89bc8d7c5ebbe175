package sqlstore

const (
	sqlTableLinks  = "links"
	sqlTableClicks = "clicks"

	sqlColID             = "id"
	sqlColOwnerID        = "owner_id"
	sqlColTitle          = "title"
	sqlColDestinationURL = "destination_url"
	sqlColIdentifier     = "identifier"
	sqlColShortCode      = "short_code"
	sqlColCustomAlias    = "custom_alias"
	sqlColQRAssetRef     = "qr_asset_ref"
	sqlColCreatedAt      = "created_at"

	sqlColLinkID     = "link_id"
	sqlColOccurredAt = "occurred_at"
	sqlColDevice     = "device"
	sqlColCity       = "city"
	sqlColCountry    = "country"
	sqlColUserAgent  = "user_agent"
	sqlColClientID   = "client_id"
	sqlColReferer    = "referer"
)

var sqlLinkCols = []string{
	sqlColID,
	sqlColOwnerID,
	sqlColTitle,
	sqlColDestinationURL,
	sqlColShortCode,
	sqlColCustomAlias,
	sqlColQRAssetRef,
	sqlColCreatedAt,
}

var sqlClickCols = []string{
	sqlColID,
	sqlColLinkID,
	sqlColOccurredAt,
	sqlColDevice,
	sqlColCity,
	sqlColCountry,
	sqlColUserAgent,
	sqlColClientID,
	sqlColReferer,
}
