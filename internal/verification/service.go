package verification

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/asaskevich/govalidator"

	"fieldgate/internal/camera"
	"fieldgate/internal/consentgate"
	"fieldgate/internal/location"
	"fieldgate/internal/platform/metrics"
	"fieldgate/internal/platform/secrets"
	"fieldgate/internal/profile"
	dErrors "fieldgate/pkg/domain-errors"
	id "fieldgate/pkg/domain"
	audit "fieldgate/pkg/platform/audit"
	"fieldgate/pkg/platform/sentinel"
)

const (
	maxPassphraseFailures = 5
	failureWindow         = 15 * time.Minute
)

// phonePattern accepts international-format numbers with common separators.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)

// Service drives verification sessions through the step machine. All
// transitions for one session are serialized behind a per-session mutex, so
// concurrent requests cannot interleave mid-transition.
type Service struct {
	store     SessionStore
	locator   Locator
	newCamera CameraFactory
	decoder   IdentityDecoder
	sink      ProfileSink

	passphraseHash string

	logger  *slog.Logger
	auditor AuditPublisher
	metrics *metrics.Metrics
	clock   Clock
	tracer  trace.Tracer

	sessionTTL   time.Duration
	bypassAfter  time.Duration
	scanDuration time.Duration
	syncDelay    time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	locks   map[id.SessionID]*sync.Mutex
	cameras map[id.SessionID]Camera
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithSessionTTL bounds how long an abandoned session survives.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithBypassAfter sets how long an unresolved location search runs before the
// bypass affordance opens.
func WithBypassAfter(d time.Duration) Option {
	return func(s *Service) { s.bypassAfter = d }
}

// WithScanDuration sets the fixed length of the face scan that runs before
// the frame is grabbed, mirroring the countdown shown to the participant.
func WithScanDuration(d time.Duration) Option {
	return func(s *Service) { s.scanDuration = d }
}

// WithSyncDelay sets the deliberate pause between final submission and the
// profile handoff.
func WithSyncDelay(d time.Duration) Option {
	return func(s *Service) { s.syncDelay = d }
}

func NewService(
	store SessionStore,
	locator Locator,
	newCamera CameraFactory,
	decoder IdentityDecoder,
	sink ProfileSink,
	passphraseHash string,
	opts ...Option,
) *Service {
	s := &Service{
		store:          store,
		locator:        locator,
		newCamera:      newCamera,
		decoder:        decoder,
		sink:           sink,
		passphraseHash: passphraseHash,
		logger:         slog.Default(),
		clock:          realClock{},
		tracer:         otel.Tracer("fieldgate/internal/verification"),
		sessionTTL:     30 * time.Minute,
		bypassAfter:    5 * time.Second,
		syncDelay:      1500 * time.Millisecond,
		sleep:          sleepCtx,
		locks:          make(map[id.SessionID]*sync.Mutex),
		cameras:        make(map[id.SessionID]Camera),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start mints a new session at the welcome step. desktop widens the location
// bypass affordance for devices without usable GPS.
func (s *Service) Start(ctx context.Context, desktop bool) (Session, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Start")
	defer span.End()

	now := s.clock.Now()
	session := Session{
		ID:             id.NewSessionID(),
		Status:         StatusActive,
		Step:           StepWelcome,
		IdentitySource: SourceManual,
		DesktopDevice:  desktop,
		Location:       LocationState{Status: LocationIdle},
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.sessionTTL),
	}
	if err := s.store.Put(ctx, session); err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not create session")
	}

	if s.metrics != nil && s.metrics.SessionsStarted != nil {
		s.metrics.SessionsStarted.Inc()
	}
	s.audit(ctx, session, audit.CategoryOperations, audit.EventSessionStarted, "")
	s.logger.InfoContext(ctx, "verification session started",
		"session_id", session.ID.String(),
		"desktop", desktop,
	)
	return session, nil
}

// Get returns the current session state.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.load(ctx, sessionID)
}

// SelectRole moves welcome → identity once the participant has chosen how
// they are verifying.
func (s *Service) SelectRole(ctx context.Context, sessionID id.SessionID, role profile.Role) (Session, error) {
	return s.transition(ctx, "SelectRole", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepWelcome); err != nil {
			return err
		}
		if role != profile.RoleAdmin && role != profile.RoleGuest {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown role")
		}

		session.Role = role
		session.Step = StepIdentity
		s.audit(ctx, *session, audit.CategoryOperations, audit.EventRoleSelected, string(role))
		return nil
	})
}

// AuthenticateSSO decodes an external SSO credential at the welcome step. A
// decodable credential prefills identity, assigns the guest role, and
// short-circuits straight to the contact step. An undecodable credential is a
// silent no-op: the caller falls back to manual entry, decoded reports false.
func (s *Service) AuthenticateSSO(ctx context.Context, sessionID id.SessionID, credential string) (session Session, decoded bool, err error) {
	session, err = s.transition(ctx, "AuthenticateSSO", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepWelcome); err != nil {
			return err
		}

		claim, ok := s.decoder.Decode(credential)
		if !ok {
			return nil
		}
		decoded = true

		session.Role = profile.RoleGuest
		session.IdentitySource = SourceSSO
		session.Name = claim.Name
		session.Email = claim.Email
		session.PhotoURL = claim.Picture
		session.Step = StepContact
		s.audit(ctx, *session, audit.CategoryOperations, audit.EventRoleSelected, "sso")
		return nil
	})
	return session, decoded, err
}

// SubmitIdentity moves identity → contact. Admin sessions must also present
// the shared passphrase; repeated mismatches within the failure window lock
// further admin attempts for this session.
func (s *Service) SubmitIdentity(ctx context.Context, sessionID id.SessionID, name, email, passphrase string) (Session, error) {
	return s.transition(ctx, "SubmitIdentity", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepIdentity); err != nil {
			return err
		}
		if name == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "full name is required")
		}
		if !govalidator.IsEmail(email) {
			return dErrors.New(dErrors.CodeInvalidInput, "a valid email address is required")
		}

		if session.Role == profile.RoleAdmin {
			if err := s.checkPassphrase(ctx, session, passphrase); err != nil {
				return err
			}
			session.AdminVerified = true
		}

		session.Name = name
		session.Email = email
		session.Step = StepContact
		return nil
	})
}

func (s *Service) checkPassphrase(ctx context.Context, session *Session, passphrase string) error {
	now := s.clock.Now()
	if !session.FailureWindowStart.IsZero() && now.Sub(session.FailureWindowStart) > failureWindow {
		session.PassphraseFailures = 0
		session.FailureWindowStart = time.Time{}
	}

	if session.PassphraseFailures >= maxPassphraseFailures {
		s.audit(ctx, *session, audit.CategorySecurity, audit.EventAdminLockedOut, "too many passphrase failures")
		return dErrors.New(dErrors.CodeLocked, "too many failed attempts, try again later")
	}

	if err := secrets.Verify(passphrase, s.passphraseHash); err != nil {
		if session.FailureWindowStart.IsZero() {
			session.FailureWindowStart = now
		}
		session.PassphraseFailures++
		if s.metrics != nil && s.metrics.PassphraseFailures != nil {
			s.metrics.PassphraseFailures.Inc()
		}
		s.audit(ctx, *session, audit.CategorySecurity, audit.EventPassphraseRefused, "")

		// The failure count must survive even though the transition is
		// refused, so persist it before returning the refusal.
		session.UpdatedAt = now
		if putErr := s.store.Put(ctx, *session); putErr != nil {
			s.logger.WarnContext(ctx, "could not persist passphrase failure count", "error", putErr)
		}
		return dErrors.New(dErrors.CodeUnauthorized, "incorrect admin passphrase")
	}

	session.PassphraseFailures = 0
	session.FailureWindowStart = time.Time{}
	return nil
}

// SubmitContact moves contact → terms.
func (s *Service) SubmitContact(ctx context.Context, sessionID id.SessionID, phone string) (Session, error) {
	return s.transition(ctx, "SubmitContact", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepContact); err != nil {
			return err
		}
		if !phonePattern.MatchString(phone) {
			return dErrors.New(dErrors.CodeInvalidInput, "a valid phone number is required")
		}

		session.Phone = phone
		session.Step = StepTerms
		return nil
	})
}

// ObserveScroll records terms-document scroll progress. Reaching the end is
// sticky: scrolling back up never clears it.
func (s *Service) ObserveScroll(ctx context.Context, sessionID id.SessionID, contentHeight, viewportHeight, scrollTop float64) (Session, error) {
	return s.transition(ctx, "ObserveScroll", sessionID, func(_ context.Context, session *Session) error {
		if err := requireStep(session, StepTerms); err != nil {
			return err
		}
		if consentgate.ReachedEnd(contentHeight, viewportHeight, scrollTop) {
			session.Consent.ScrolledToEnd = true
		}
		return nil
	})
}

// SetAgreement toggles the terms checkbox. Agreeing is only possible once
// the document has been read to the end; unchecking never clears the
// read-to-end mark.
func (s *Service) SetAgreement(ctx context.Context, sessionID id.SessionID, agreed bool) (Session, error) {
	return s.transition(ctx, "SetAgreement", sessionID, func(_ context.Context, session *Session) error {
		if err := requireStep(session, StepTerms); err != nil {
			return err
		}
		if agreed && !session.Consent.ScrolledToEnd {
			return dErrors.New(dErrors.CodeInvalidState, "terms must be read to the end before agreeing")
		}
		session.Consent.Agreed = agreed
		return nil
	})
}

// ConfirmTerms moves terms → location once the document has been read and
// agreed to. Entering the location step opens the acquisition window that
// times the bypass affordance.
func (s *Service) ConfirmTerms(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.transition(ctx, "ConfirmTerms", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepTerms); err != nil {
			return err
		}
		if !session.Consent.ScrolledToEnd || !session.Consent.Agreed {
			return dErrors.New(dErrors.CodeInvalidState, "terms must be read and agreed to")
		}

		session.Step = StepLocation
		session.Location = LocationState{
			Status:    LocationIdle,
			EnteredAt: s.clock.Now(),
		}
		s.audit(ctx, *session, audit.CategoryCompliance, audit.EventConsentAccepted, "")
		return nil
	})
}

// AcquireLocation runs a position acquisition and locks the resulting fix.
// Re-acquiring an already locked session is a no-op success. Permission
// denial degrades the session to LocationDenied, opening the bypass
// affordance immediately; it is not an error.
func (s *Service) AcquireLocation(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.transition(ctx, "AcquireLocation", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepLocation); err != nil {
			return err
		}
		if session.Location.Status == LocationLocked {
			return nil
		}

		session.Location.Status = LocationAcquiring
		fix, err := s.locator.RequestFix(ctx)
		if err != nil {
			if dErrors.Is(err, dErrors.CodeUnauthorized) {
				session.Location.Status = LocationDenied
				s.logger.WarnContext(ctx, "location permission denied",
					"session_id", session.ID.String(),
				)
				return nil
			}
			session.Location.Status = LocationIdle
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not acquire a position")
		}

		session.Location.Status = LocationLocked
		session.Location.Fix = &fix
		s.audit(ctx, *session, audit.CategoryOperations, audit.EventLocationLocked, string(fix.Source))
		return nil
	})
}

// RefreshLocation re-reads the position with the low-friction quick fix,
// keeping the held fix when the refresh fails. Only meaningful while locked.
func (s *Service) RefreshLocation(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.transition(ctx, "RefreshLocation", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepLocation); err != nil {
			return err
		}
		if session.Location.Status != LocationLocked {
			return dErrors.New(dErrors.CodeInvalidState, "no position is locked yet")
		}
		// A bypassed fix stays a bypassed fix.
		if session.Location.Fix != nil && session.Location.Fix.Source == location.SourceBypass {
			return nil
		}

		fix, err := s.locator.RequestQuickFix(ctx)
		if err != nil {
			return nil
		}
		session.Location.Fix = &fix
		return nil
	})
}

// BypassLocation injects the fixed fallback position. The affordance opens
// after the acquisition window has run unresolved, immediately on permission
// denial, and immediately on desktop devices.
func (s *Service) BypassLocation(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.transition(ctx, "BypassLocation", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepLocation); err != nil {
			return err
		}
		if session.Location.Status == LocationLocked {
			return nil
		}
		if !s.bypassAllowed(*session) {
			return dErrors.New(dErrors.CodeInvalidState, "position search is still running")
		}

		fix := s.locator.BypassFix()
		session.Location.Status = LocationLocked
		session.Location.Fix = &fix

		if s.metrics != nil && s.metrics.LocationBypasses != nil {
			s.metrics.LocationBypasses.Inc()
		}
		s.audit(ctx, *session, audit.CategorySecurity, audit.EventLocationBypassed, "")
		return nil
	})
}

func (s *Service) bypassAllowed(session Session) bool {
	if session.DesktopDevice || session.Location.Status == LocationDenied {
		return true
	}
	return s.clock.Now().Sub(session.Location.EnteredAt) >= s.bypassAfter
}

// ConfirmLocation moves location → face_scan and opens the front camera.
// Camera refusal does not block the flow: the capture is marked bypassed,
// with a nil photo, and the session proceeds.
func (s *Service) ConfirmLocation(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.transition(ctx, "ConfirmLocation", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepLocation); err != nil {
			return err
		}
		if session.Location.Status != LocationLocked {
			return dErrors.New(dErrors.CodeInvalidState, "a position must be locked first")
		}

		session.Step = StepFaceScan
		if err := s.cameraFor(session.ID).Start(ctx, camera.FacingFront); err != nil {
			s.stopCamera(session.ID)
			s.bypassCapture(ctx, session, dErrors.MessageOf(err))
		}
		return nil
	})
}

func (s *Service) bypassCapture(ctx context.Context, session *Session, reason string) {
	session.Biometric = Biometric{
		Captured: true,
		Method:   MethodCaptureBypassed,
	}
	if s.metrics != nil && s.metrics.CameraDenials != nil {
		s.metrics.CameraDenials.Inc()
	}
	s.audit(ctx, *session, audit.CategorySecurity, audit.EventCaptureBypassed, reason)
}

// SwitchCamera flips between the front and rear camera during the face-scan
// step.
func (s *Service) SwitchCamera(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.transition(ctx, "SwitchCamera", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepFaceScan); err != nil {
			return err
		}
		if session.Biometric.Method == MethodCaptureBypassed {
			return dErrors.New(dErrors.CodeInvalidState, "camera is not available")
		}
		return s.cameraFor(session.ID).Switch(ctx)
	})
}

// CaptureFace grabs a frame from the running camera and stores it as the
// session's face capture. A camera failure mid-capture degrades to a
// bypassed capture instead of stranding the participant.
func (s *Service) CaptureFace(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.transition(ctx, "CaptureFace", sessionID, func(ctx context.Context, session *Session) error {
		if err := requireStep(session, StepFaceScan); err != nil {
			return err
		}
		if session.Biometric.Method == MethodCaptureBypassed {
			return nil
		}

		// The scan runs for its fixed window before the frame is grabbed.
		if err := s.sleep(ctx, s.scanDuration); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "face scan interrupted")
		}

		photo, err := s.cameraFor(session.ID).CaptureFrame(ctx)
		if err != nil {
			s.stopCamera(session.ID)
			s.bypassCapture(ctx, session, dErrors.MessageOf(err))
			return nil
		}

		session.Biometric = Biometric{
			Captured: true,
			Method:   MethodCaptured,
			Photo:    photo,
		}
		s.audit(ctx, *session, audit.CategoryOperations, audit.EventCaptureCompleted, "")
		return nil
	})
}

// ConfirmCapture moves face_scan → final and releases the session's camera.
func (s *Service) ConfirmCapture(ctx context.Context, sessionID id.SessionID) (Session, error) {
	return s.transition(ctx, "ConfirmCapture", sessionID, func(_ context.Context, session *Session) error {
		if err := requireStep(session, StepFaceScan); err != nil {
			return err
		}
		if !session.Biometric.Captured {
			return dErrors.New(dErrors.CodeInvalidState, "face capture has not completed")
		}

		s.stopCamera(session.ID)
		session.Step = StepFinal
		return nil
	})
}

// Complete assembles the member profile, pauses for the sync window, and
// hands the profile to the portal sink. On sink failure the session stays at
// the final step so completion can be retried.
func (s *Service) Complete(ctx context.Context, sessionID id.SessionID) (profile.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Complete")
	defer span.End()

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return profile.Profile{}, err
	}
	if err := requireStep(&session, StepFinal); err != nil {
		return profile.Profile{}, err
	}

	built, err := profile.Build(session.Role, session.Name, session.Phone, session.Email, session.PhotoURL)
	if err != nil {
		return profile.Profile{}, err
	}
	if session.Biometric.Method == MethodCaptured {
		built = built.WithFacePhoto(session.Biometric.Photo)
	}
	if fix := session.Location.Fix; fix != nil {
		built = built.WithPosition(fix.Latitude, fix.Longitude, fix.Accuracy)
	}

	// The sync pause mirrors the progress feedback shown to the user before
	// the portal takes over.
	if err := s.sleep(ctx, s.syncDelay); err != nil {
		return profile.Profile{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "completion interrupted")
	}

	if err := s.sink.Deliver(ctx, session.ID, session.Role, built); err != nil {
		s.audit(ctx, session, audit.CategoryOperations, audit.EventHandoffFailed, dErrors.MessageOf(err))
		s.logger.WarnContext(ctx, "profile handoff failed",
			"session_id", session.ID.String(),
			"error", err,
		)
		return profile.Profile{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not hand the profile to the portal")
	}

	session.Status = StatusComplete
	s.stopCamera(session.ID)
	if err := s.store.Delete(ctx, session.ID); err != nil {
		s.logger.WarnContext(ctx, "could not remove completed session", "error", err)
	}
	s.dropLock(sessionID)

	if s.metrics != nil && s.metrics.SessionsCompleted != nil {
		s.metrics.SessionsCompleted.WithLabelValues(string(session.Role)).Inc()
	}
	s.audit(ctx, session, audit.CategoryCompliance, audit.EventVerificationCompleted, "")
	s.logger.InfoContext(ctx, "verification completed",
		"session_id", session.ID.String(),
		"role", string(session.Role),
	)
	return built, nil
}

// Back moves exactly one step back, keeping entered data. Backing out of the
// first step cancels the session entirely; cancelled reports that case.
func (s *Service) Back(ctx context.Context, sessionID id.SessionID) (session Session, cancelled bool, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.Back")
	defer span.End()

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err = s.loadLocked(ctx, sessionID)
	if err != nil {
		return Session{}, false, err
	}

	prev, ok := prevStep(session.Step)
	if !ok {
		if err := s.teardown(ctx, &session); err != nil {
			return Session{}, false, err
		}
		return Session{}, true, nil
	}

	// Leaving the face-scan step backwards releases the session's camera;
	// re-entering it from the final step opens the camera again, unless the
	// capture was already bypassed.
	if session.Step == StepFaceScan {
		s.stopCamera(session.ID)
	}
	session.Step = prev
	if prev == StepFaceScan && session.Biometric.Method != MethodCaptureBypassed {
		if err := s.cameraFor(session.ID).Start(ctx, camera.FacingFront); err != nil {
			s.stopCamera(session.ID)
			s.bypassCapture(ctx, &session, dErrors.MessageOf(err))
		}
	}
	session.UpdatedAt = s.clock.Now()
	if err := s.store.Put(ctx, session); err != nil {
		return Session{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist session")
	}
	return session, false, nil
}

// Cancel destroys the session and releases every held resource. No profile
// is delivered.
func (s *Service) Cancel(ctx context.Context, sessionID id.SessionID) error {
	ctx, span := s.tracer.Start(ctx, "verification.Cancel")
	defer span.End()

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.teardown(ctx, &session)
}

func (s *Service) teardown(ctx context.Context, session *Session) error {
	s.stopCamera(session.ID)
	if err := s.store.Delete(ctx, session.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not remove session")
	}
	s.dropLock(session.ID)

	if s.metrics != nil && s.metrics.SessionsCancelled != nil {
		s.metrics.SessionsCancelled.Inc()
	}
	s.audit(ctx, *session, audit.CategoryOperations, audit.EventSessionCancelled, "")
	s.logger.InfoContext(ctx, "verification session cancelled",
		"session_id", session.ID.String(),
		"step", string(session.Step),
	)
	return nil
}

// transition runs fn against the session under its lock, persisting the
// session only when fn succeeds. A refused transition leaves stored state
// untouched.
func (s *Service) transition(ctx context.Context, op string, sessionID id.SessionID, fn func(context.Context, *Session) error) (Session, error) {
	ctx, span := s.tracer.Start(ctx, "verification."+op)
	defer span.End()

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}

	if err := fn(ctx, &session); err != nil {
		if s.metrics != nil && s.metrics.TransitionsRefused != nil {
			s.metrics.TransitionsRefused.WithLabelValues(string(session.Step)).Inc()
		}
		return Session{}, err
	}

	session.UpdatedAt = s.clock.Now()
	if err := s.store.Put(ctx, session); err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist session")
	}
	return session, nil
}

func (s *Service) load(ctx context.Context, sessionID id.SessionID) (Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return s.loadLocked(ctx, sessionID)
}

func (s *Service) loadLocked(ctx context.Context, sessionID id.SessionID) (Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// A session the janitor reaped may still hold a camera.
		s.stopCamera(sessionID)
		return Session{}, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not load session")
	}

	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(s.clock.Now()) {
		_ = s.store.Delete(ctx, sessionID)
		s.stopCamera(sessionID)
		s.dropLock(sessionID)
		return Session{}, dErrors.New(dErrors.CodeNotFound, "session has expired")
	}
	return session, nil
}

func (s *Service) sessionLock(sessionID id.SessionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

func (s *Service) dropLock(sessionID id.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, sessionID)
}

// cameraFor returns the session's camera, minting one on first use.
func (s *Service) cameraFor(sessionID id.SessionID) Camera {
	s.mu.Lock()
	defer s.mu.Unlock()

	cam, ok := s.cameras[sessionID]
	if !ok {
		cam = s.newCamera()
		s.cameras[sessionID] = cam
	}
	return cam
}

// stopCamera releases the session's camera, if it holds one. Cameras for
// other sessions are untouched.
func (s *Service) stopCamera(sessionID id.SessionID) {
	s.mu.Lock()
	cam, ok := s.cameras[sessionID]
	delete(s.cameras, sessionID)
	s.mu.Unlock()

	if ok {
		cam.Stop()
	}
}

func (s *Service) audit(ctx context.Context, session Session, category audit.EventCategory, action audit.AuditEvent, reason string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Category:  category,
		SessionID: session.ID,
		Action:    string(action),
		Step:      string(session.Step),
		Role:      string(session.Role),
		Reason:    reason,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "could not emit audit event", "action", string(action), "error", err)
	}
}

func requireStep(session *Session, step Step) error {
	if session.Step != step {
		return dErrors.New(dErrors.CodeInvalidState, "action not available at the current step")
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
