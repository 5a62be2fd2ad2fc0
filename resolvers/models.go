package resolvers

// Address is a user's postal address. Every field is optional so a partial
// address can be merged into a stored one.
type Address struct {
	Street  string `json:"street,omitempty" dynamodbav:"street,omitempty" validate:"omitempty,max=200"`
	City    string `json:"city,omitempty" dynamodbav:"city,omitempty" validate:"omitempty,max=100"`
	ZipCode string `json:"zipCode,omitempty" dynamodbav:"zipCode,omitempty" validate:"omitempty,max=20"`
	Country string `json:"country,omitempty" dynamodbav:"country,omitempty" validate:"omitempty,max=100"`
}

type User struct {
	ID            string   `json:"id" dynamodbav:"id"`
	Email         string   `json:"email" dynamodbav:"email"`
	Username      string   `json:"username" dynamodbav:"username"`
	About         string   `json:"about,omitempty" dynamodbav:"about,omitempty"`
	ProfilePicURL string   `json:"profilePicUrl,omitempty" dynamodbav:"profilePicUrl,omitempty"`
	ProfilePicKey string   `json:"profilePicKey,omitempty" dynamodbav:"profilePicKey,omitempty"`
	Address       *Address `json:"address,omitempty" dynamodbav:"address,omitempty"`
	UserType      string   `json:"userType,omitempty" dynamodbav:"userType,omitempty"`
	FirstName     string   `json:"firstName,omitempty" dynamodbav:"firstName,omitempty"`
	LastName      string   `json:"lastName,omitempty" dynamodbav:"lastName,omitempty"`
	CreatedOn     int64    `json:"createdOn" dynamodbav:"createdOn"`
	UpdatedOn     int64    `json:"updatedOn,omitempty" dynamodbav:"updatedOn,omitempty"`
}

type UserInput struct {
	Email         string   `json:"email" validate:"required,email"`
	Username      string   `json:"username" validate:"required,min=3,max=32"`
	About         string   `json:"about" validate:"max=500"`
	ProfilePicURL string   `json:"profilePicUrl" validate:"omitempty,url"`
	ProfilePicKey string   `json:"profilePicKey" validate:"max=1024"`
	Address       *Address `json:"address"`
	UserType      string   `json:"userType" validate:"omitempty,oneof=ADMIN USER"`
	FirstName     string   `json:"firstName" validate:"max=100"`
	LastName      string   `json:"lastName" validate:"max=100"`
}

type UpdateUserInput struct {
	Username string   `json:"username" validate:"omitempty,min=3,max=32"`
	Address  *Address `json:"address"`
}

type Post struct {
	ID        string `json:"id" dynamodbav:"id"`
	UserID    string `json:"userId" dynamodbav:"userId"`
	Content   string `json:"content" dynamodbav:"content"`
	ImageURL  string `json:"imageUrl,omitempty" dynamodbav:"imageUrl,omitempty"`
	CreatedOn int64  `json:"createdOn" dynamodbav:"createdOn"`
	UpdatedOn int64  `json:"updatedOn,omitempty" dynamodbav:"updatedOn,omitempty"`
}

type PostInput struct {
	UserID   string `json:"userId" validate:"required"`
	Content  string `json:"content" validate:"required,max=5000"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

type Comment struct {
	ID        string `json:"id" dynamodbav:"id"`
	PostID    string `json:"postId" dynamodbav:"postId"`
	UserID    string `json:"userId" dynamodbav:"userId"`
	Comment   string `json:"comment" dynamodbav:"comment"`
	CreatedOn int64  `json:"createdOn" dynamodbav:"createdOn"`
}

type CommentInput struct {
	PostID  string `json:"postId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

// Follow is an edge from follower to followed user.
type Follow struct {
	FollowerID  string `json:"followerId" dynamodbav:"followerId"`
	FollowingID string `json:"followingId" dynamodbav:"followingId"`
	CreatedOn   int64  `json:"createdOn,omitempty" dynamodbav:"createdOn,omitempty"`
}

// Page is a page of results with the token for the next one. NextToken is
// null exactly when nothing follows.
type Page[T any] struct {
	Items     []T     `json:"items"`
	NextToken *string `json:"nextToken"`
}

// PageArgs are the paging arguments shared by list operations.
type PageArgs struct {
	Limit     int32  `json:"limit" validate:"min=0,max=100"`
	NextToken string `json:"nextToken"`
}
