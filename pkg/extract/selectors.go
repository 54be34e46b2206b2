package extract

// Timeline DOM selectors. The site renames these from time to time; when
// extraction starts returning empty fields, check here first.
const (
	ItemArticle   = `article[data-testid="tweet"]`
	ItemText      = `[data-testid="tweetText"]`
	ItemAuthor    = `[data-testid="User-Name"]`
	ItemTimestamp = `time[datetime]`
	ItemLink      = `a[href*="/status/"]`
	ExternalLink  = `a[href*="http"]`
	ItemPhoto     = `[data-testid="tweetPhoto"]`
	ItemPhotoImg  = `[data-testid="tweetPhoto"] img[src]`
	ItemVideo     = `[data-testid="videoPlayer"]`
	SocialContext = `[data-testid="socialContext"]`
	ReplyButton   = `[data-testid="reply"]`
	ReshareButton = `[data-testid="retweet"]`
	LikeButton    = `[data-testid="like"]`
)
