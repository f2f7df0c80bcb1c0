package forms

// PrivateMessageInput is a private message about to be saved.
type PrivateMessageInput struct {
	SenderID    int64  `json:"sender_id" yaml:"sender_id" validate:"required"`
	ReceiverID  int64  `json:"receiver_id" yaml:"receiver_id" validate:"required,nefield=SenderID"`
	Description string `json:"description" yaml:"description" validate:"required,max=512"`
	Seen        bool   `json:"seen" yaml:"seen"`
}

// CommentInput is a comment about to be saved.
type CommentInput struct {
	UserID      int64  `json:"user_id" yaml:"user_id" validate:"required"`
	PostID      int64  `json:"post_id" yaml:"post_id" validate:"required"`
	Description string `json:"description" yaml:"description" validate:"required,min=3,max=256"`
}

// Post types.
const (
	PostTypeRequest = "REQUEST"
	PostTypeFound   = "FOUND"
)

// PostInput is a post about to be saved. Lat, Lng and Reward are pointers so
// that a missing value is distinguishable from zero.
type PostInput struct {
	UserID      int64    `json:"user_id" yaml:"user_id" validate:"required"`
	Title       string   `json:"title" yaml:"title" validate:"required,min=3,max=128"`
	Description string   `json:"description" yaml:"description" validate:"required,min=3,max=256"`
	Lat         *float64 `json:"lat" yaml:"lat" validate:"required,gte=-90,lte=90"`
	Lng         *float64 `json:"lng" yaml:"lng" validate:"required,gte=-180,lte=180"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=REQUEST FOUND"`
	Reward      *float64 `json:"reward" yaml:"reward" validate:"required,gte=0"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty" validate:"omitempty,dive,required,max=64"`
}
