package friends

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/warrenio/riftline/internal/presence"
)

// Service orchestrates friend management operations.
type Service struct {
	repo     *Repository
	presence *presence.Tracker
	logger   zerolog.Logger
}

// NewService creates a new friends service. presenceTracker may be nil, in
// which case GetFriends reports every friend as offline.
func NewService(repo *Repository, presenceTracker *presence.Tracker, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		presence: presenceTracker,
		logger:   logger.With().Str("component", "friends_service").Logger(),
	}
}

// SendRequest sends a friend request from senderID to the user with the given username.
// Validates: not self, not already friends, no duplicate pending request, user exists.
// Complexity: O(1).
func (s *Service) SendRequest(ctx context.Context, senderID, receiverUsername string) error {
	receiverUsername = strings.TrimSpace(receiverUsername)
	if receiverUsername == "" {
		return fmt.Errorf("username cannot be empty")
	}

	// Look up receiver
	receiverID, _, _, err := s.repo.GetUserByUsername(ctx, receiverUsername)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if receiverID == "" {
		return fmt.Errorf("user '%s' not found", receiverUsername)
	}

	// Cannot add yourself
	if senderID == receiverID {
		return fmt.Errorf("you cannot send a friend request to yourself")
	}

	// Check if already friends
	areFriends, err := s.repo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return fmt.Errorf("failed to check friendship: %w", err)
	}
	if areFriends {
		return fmt.Errorf("you are already friends with %s", receiverUsername)
	}

	// Check for existing pending/blocked request
	existing, err := s.repo.ExistingRequest(ctx, senderID, receiverID)
	if err != nil {
		return fmt.Errorf("failed to check existing request: %w", err)
	}
	if existing != nil {
		if existing.Status == StatusBlocked {
			return fmt.Errorf("cannot send request to this user")
		}
		return fmt.Errorf("friend request already pending")
	}

	_, err = s.repo.SendRequest(ctx, senderID, receiverID)
	return err
}

// GetPendingRequests returns all pending friend requests for a user.
func (s *Service) GetPendingRequests(ctx context.Context, userID string) ([]FriendRequestView, error) {
	return s.repo.GetPendingRequests(ctx, userID)
}

// AcceptRequest accepts a friend request. Only the receiver can accept.
func (s *Service) AcceptRequest(ctx context.Context, requestID, userID string) error {
	return s.repo.AcceptRequest(ctx, requestID, userID)
}

// RejectRequest rejects or cancels a friend request.
func (s *Service) RejectRequest(ctx context.Context, requestID, userID string) error {
	return s.repo.RejectRequest(ctx, requestID, userID)
}

// GetFriends returns all friends for a user, with live presence overlaid
// onto the repository's static "offline" placeholder.
func (s *Service) GetFriends(ctx context.Context, userID string) ([]FriendView, error) {
	friendsList, err := s.repo.GetFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.presence == nil {
		return friendsList, nil
	}
	for i := range friendsList {
		if s.presence.IsOnline(friendsList[i].ID) {
			friendsList[i].Status = "online"
		}
	}
	return friendsList, nil
}

// RemoveFriend removes a friendship.
func (s *Service) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return s.repo.RemoveFriend(ctx, userID, friendID)
}

// BlockUser blocks a target user.
func (s *Service) BlockUser(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return fmt.Errorf("you cannot block yourself")
	}
	return s.repo.BlockUser(ctx, userID, targetID)
}

// GetDirectMessages returns the direct message history between userID and
// friendID. Only friends may read each other's direct messages.
func (s *Service) GetDirectMessages(ctx context.Context, userID, friendID string, opts DMPaginationOpts) ([]DirectMessage, error) {
	areFriends, err := s.repo.AreFriends(ctx, userID, friendID)
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship: %w", err)
	}
	if !areFriends {
		return nil, fmt.Errorf("you are not friends with this user")
	}
	return s.repo.GetDirectMessages(ctx, userID, friendID, opts)
}

// SendDirectMessage sends a direct message from userID to friendID. Only
// friends may message each other.
func (s *Service) SendDirectMessage(ctx context.Context, userID, friendID, content string) (*DirectMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content cannot be empty")
	}

	areFriends, err := s.repo.AreFriends(ctx, userID, friendID)
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship: %w", err)
	}
	if !areFriends {
		return nil, fmt.Errorf("you are not friends with this user")
	}

	return s.repo.SaveDirectMessage(ctx, userID, friendID, content)
}

// UnblockUser unblocks a target user by username lookup.
func (s *Service) UnblockUser(ctx context.Context, userID, targetUsername string) error {
	targetID, _, _, err := s.repo.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if targetID == "" {
		return fmt.Errorf("user '%s' not found", targetUsername)
	}
	return s.repo.UnblockUser(ctx, userID, targetID)
}
