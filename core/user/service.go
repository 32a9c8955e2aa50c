package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound            = core.NewNotFoundError("usuario no encontrado")
	ErrPrivilegeNotFound   = core.NewNotFoundError("privilegio no encontrado")
	ErrDeviceNotFound      = core.NewNotFoundError("dispositivo no encontrado")
	ErrEmailExists         = errors.New("ya existe un usuario con este correo")
	ErrPrivilegeExists     = errors.New("ya existe un privilegio con este nombre")
	ErrInvalidCredentials  = errors.New("credenciales inválidas")
	ErrAccountDeactivated  = errors.New("cuenta desactivada")
	ErrSessionClosed       = errors.New("la sesión ha sido cerrada")
	ErrInvalidPrivilegeRef = errors.New("el privilegio no existe")

	passwordResetTmpl = "password_reset"
)

func init() {
	core.RegisterEmailTemplate(passwordResetTmpl,
		`Hola {{.Name}},

Recibimos una solicitud para restablecer la contraseña de tu cuenta.
Ingresa a {{.URL}} para elegir una nueva. El enlace vence en {{.Days}} días.

Si no solicitaste el cambio, ignora este mensaje.`,
		`<p>Hola {{.Name}},</p>
<p>Recibimos una solicitud para restablecer la contraseña de tu cuenta.</p>
<p><a href="{{.URL}}">Elegir una nueva contraseña</a> (el enlace vence en {{.Days}} días).</p>
<p>Si no solicitaste el cambio, ignora este mensaje.</p>`,
	)
}

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error
		CreateUser(ctx context.Context, usr User, entry audit.Entry) (User, error)
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User, entry audit.Entry) (User, error)
		SetLastLogin(ctx context.Context, id int, t time.Time) error

		CreatePrivilege(ctx context.Context, priv Privilege, entry audit.Entry) (Privilege, error)
		QueryPrivileges(ctx context.Context) ([]Privilege, error)
		GetPrivilegeByID(ctx context.Context, id int) (Privilege, error)
		GetPrivilegeByName(ctx context.Context, name Role) (Privilege, error)
		UpdatePrivilege(ctx context.Context, priv Privilege, entry audit.Entry) (Privilege, error)
	}

	DeviceRepository interface {
		QueryDevices(ctx context.Context, userIDs ...int) ([]Device, error)
		GetDevice(ctx context.Context, id string) (Device, error)
		CreateDevice(ctx context.Context, dev Device) (Device, error)
		UpdateDevice(ctx context.Context, dev Device) (Device, error)
	}

	Service struct {
		repo    Repository
		devices DeviceRepository
		mailSvc core.EmailService
		conf    *core.Config
		tokens  resetTokens
	}
)

func NewService(repo Repository, devices DeviceRepository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		devices: devices,
		mailSvc: mailSvc,
		conf:    conf,
		tokens:  resetTokens{secret: conf.SecretKey, timeout: conf.PasswordResetTimeoutDelta},
	}
}

func (svc *Service) checkEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs...); err != nil {
		if err == ErrEmailExists {
			return core.NewConflictError("email", err)
		}
		return pkgerrors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

func (svc *Service) resolvePrivilege(ctx context.Context, id int) (Privilege, error) {
	priv, err := svc.repo.GetPrivilegeByID(ctx, id)
	if err != nil {
		if pkgerrors.Cause(err) == ErrPrivilegeNotFound {
			return Privilege{}, core.NewValidationError(ErrInvalidPrivilegeRef,
				core.FieldError{Field: "FK_privilege", Error: ErrInvalidPrivilegeRef.Error()})
		}
		return Privilege{}, pkgerrors.Wrap(err, "finding privilege")
	}
	return priv, nil
}

// Users

func (svc *Service) Create(ctx context.Context, nu NewUser, actor audit.Actor) (User, error) {
	if err := svc.checkEmailUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}
	priv, err := svc.resolvePrivilege(ctx, nu.PrivilegeID)
	if err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		FirstName:   nu.FirstName,
		LastName:    nu.LastName,
		Email:       nu.Email,
		PrivilegeID: priv.ID,
		Role:        priv.Name,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "hashing password")
	}
	usr, err = svc.repo.CreateUser(ctx, usr, audit.Created(audit.EntityUser, actor))
	if err != nil {
		return User{}, pkgerrors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	users, err := svc.repo.QueryUsers(ctx, filter, ordering)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying users")
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]int, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	devices, err := svc.devices.QueryDevices(ctx, ids...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying devices")
	}
	online := make(map[int]bool, len(devices))
	for _, d := range devices {
		if d.IsActive {
			online[d.UserID] = true
		}
	}
	for i := range users {
		users[i].IsOnline = online[users[i].ID]
	}
	return users, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Update applies the fields present in uu. It reports changed=false, without writing, when nothing differs.
func (svc *Service) Update(ctx context.Context, id int, uu UpdateUser, actor audit.Actor) (usr User, changed bool, err error) {
	orig, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, false, err
	}
	usr = orig
	changes := make(audit.Changes)

	if uu.FirstName != nil {
		changes.Track("firstName", orig.FirstName, *uu.FirstName)
		usr.FirstName = *uu.FirstName
	}
	if uu.LastName != nil {
		changes.Track("lastName", orig.LastName, *uu.LastName)
		usr.LastName = *uu.LastName
	}
	if uu.Email != nil && *uu.Email != orig.Email {
		if err = svc.checkEmailUniqueness(ctx, *uu.Email, orig.ID); err != nil {
			return User{}, false, err
		}
		changes.Track("email", orig.Email, *uu.Email)
		usr.Email = *uu.Email
	}
	if uu.PrivilegeID != nil && *uu.PrivilegeID != orig.PrivilegeID {
		priv, err := svc.resolvePrivilege(ctx, *uu.PrivilegeID)
		if err != nil {
			return User{}, false, err
		}
		changes.Track("FK_privilege", orig.PrivilegeID, priv.ID)
		usr.PrivilegeID = priv.ID
		usr.Role = priv.Name
	}
	if uu.IsActive != nil {
		changes.Track("isActive", orig.IsActive, *uu.IsActive)
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" && orig.CheckPassword(uu.Password) != nil {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, false, pkgerrors.Wrap(err, "hashing password")
		}
		changes["password"] = audit.Change{Old: "********", New: "********"}
	}

	if changes.IsEmpty() {
		return orig, false, nil
	}
	usr.UpdatedAt = NowFunc().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr, audit.Updated(audit.EntityUser, usr.ID, actor, changes))
	if err != nil {
		return User{}, false, pkgerrors.Wrap(err, "updating user")
	}
	return usr, true, nil
}

// Privileges

func (svc *Service) CreatePrivilege(ctx context.Context, np NewPrivilege, actor audit.Actor) (Privilege, error) {
	role, _ := ParseRole(np.Name)
	now := NowFunc().UTC()
	priv := Privilege{
		Name:        role,
		Description: np.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	priv, err := svc.repo.CreatePrivilege(ctx, priv, audit.Created(audit.EntityPrivilege, actor))
	if err != nil {
		if pkgerrors.Cause(err) == ErrPrivilegeExists {
			return Privilege{}, core.NewConflictError("privilege", ErrPrivilegeExists)
		}
		return Privilege{}, pkgerrors.Wrap(err, "creating privilege")
	}
	return priv, nil
}

func (svc *Service) QueryPrivileges(ctx context.Context) ([]Privilege, error) {
	return svc.repo.QueryPrivileges(ctx)
}

func (svc *Service) GetPrivilege(ctx context.Context, id int) (Privilege, error) {
	return svc.repo.GetPrivilegeByID(ctx, id)
}

func (svc *Service) UpdatePrivilege(ctx context.Context, id int, up UpdatePrivilege, actor audit.Actor) (Privilege, bool, error) {
	orig, err := svc.repo.GetPrivilegeByID(ctx, id)
	if err != nil {
		return Privilege{}, false, err
	}
	priv := orig
	changes := make(audit.Changes)

	if up.Name != nil {
		role, _ := ParseRole(*up.Name)
		changes.Track("privilege", string(orig.Name), string(role))
		priv.Name = role
	}
	if up.Description != nil {
		changes.Track("description", orig.Description, *up.Description)
		priv.Description = *up.Description
	}
	if up.IsActive != nil {
		changes.Track("isActive", orig.IsActive, *up.IsActive)
		priv.IsActive = *up.IsActive
	}

	if changes.IsEmpty() {
		return orig, false, nil
	}
	priv.UpdatedAt = NowFunc().UTC()
	priv, err = svc.repo.UpdatePrivilege(ctx, priv, audit.Updated(audit.EntityPrivilege, priv.ID, actor, changes))
	if err != nil {
		if pkgerrors.Cause(err) == ErrPrivilegeExists {
			return Privilege{}, false, core.NewConflictError("privilege", ErrPrivilegeExists)
		}
		return Privilege{}, false, pkgerrors.Wrap(err, "updating privilege")
	}
	return priv, true, nil
}

// Password reset

// RequestPasswordReset emails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrAccountDeactivated
	}

	path := fmt.Sprintf("/password-reset/%s/%s", EncodeUID(usr), svc.tokens.make(usr))
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Restablecer contraseña",
		TemplateName: passwordResetTmpl,
		TemplateData: map[string]interface{}{
			"Name": usr.FirstName,
			"URL":  svc.conf.FrontendBaseURL + path,
			"Days": int(svc.conf.PasswordResetTimeoutDelta / (24 * time.Hour)),
		},
	})
	return nil
}

// ResetPassword sets the new password of the user designated by the uid and token of a reset link.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) (User, error) {
	invalidLink := func(field string, err error) error {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}

	id, err := decodeUID(rp.UID)
	if err != nil {
		return User{}, invalidLink("uid", errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return User{}, invalidLink("uid", errInvalidToken)
		}
		return User{}, pkgerrors.Wrap(err, "finding user")
	}
	if !usr.IsActive {
		return User{}, invalidLink("uid", errInvalidToken)
	}
	if err = svc.tokens.verify(usr, rp.Token); err != nil {
		return User{}, invalidLink("token", err)
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	actor := audit.Actor{UserID: usr.ID, UserRole: usr.Role.String(), UserName: usr.FullName()}
	changes := audit.Changes{"password": audit.Change{Old: "********", New: "********"}}
	usr, err = svc.repo.UpdateUser(ctx, usr, audit.Updated(audit.EntityUser, usr.ID, actor, changes))
	if err != nil {
		return User{}, pkgerrors.Wrap(err, "updating user")
	}
	return usr, nil
}

// Sessions

// Authenticate checks the credentials and records the login on the caller's device.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string, info DeviceInfo) (User, Device, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return User{}, Device{}, ErrInvalidCredentials
		}
		return User{}, Device{}, pkgerrors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, Device{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, Device{}, ErrAccountDeactivated
	}

	dev, err := svc.recordLogin(ctx, usr.ID, info)
	if err != nil {
		return User{}, Device{}, pkgerrors.Wrap(err, "recording login")
	}

	now := NowFunc().UTC()
	if err = svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, Device{}, pkgerrors.Wrap(err, "setting last login")
	}
	usr.LastLogin = null.TimeFrom(now)
	usr.IsOnline = true
	return usr, dev, nil
}

func (svc *Service) recordLogin(ctx context.Context, userID int, info DeviceInfo) (Device, error) {
	info.Clean()
	now := NowFunc().UTC()

	devices, err := svc.devices.QueryDevices(ctx, userID)
	if err != nil {
		return Device{}, err
	}
	for _, dev := range devices {
		if dev.SameAs(info) {
			dev.IP = info.IP
			dev.UserAgent = info.UserAgent
			dev.LoginAt = now
			dev.LogoutAt = null.Time{}
			dev.IsActive = true
			return svc.devices.UpdateDevice(ctx, dev)
		}
	}

	return svc.devices.CreateDevice(ctx, Device{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      info.Type,
		Brand:     info.Brand,
		Model:     info.Model,
		OS:        info.OS,
		Browser:   info.Browser,
		IP:        info.IP,
		UserAgent: info.UserAgent,
		LoginAt:   now,
		IsActive:  true,
	})
}

// Logout closes the session. Closing an unknown or already closed session is a no-op.
func (svc *Service) Logout(ctx context.Context, userID int, sessionID string) error {
	dev, err := svc.devices.GetDevice(ctx, sessionID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrDeviceNotFound {
			return nil
		}
		return pkgerrors.Wrap(err, "finding device")
	}
	if dev.UserID != userID || !dev.IsActive {
		return nil
	}
	dev.IsActive = false
	dev.LogoutAt = null.TimeFrom(NowFunc().UTC())
	if _, err = svc.devices.UpdateDevice(ctx, dev); err != nil {
		return pkgerrors.Wrap(err, "closing device session")
	}
	return nil
}

// CheckSession returns ErrSessionClosed when the session record disappeared or was closed.
func (svc *Service) CheckSession(ctx context.Context, userID int, sessionID string) (Device, error) {
	if sessionID == "" {
		return Device{}, ErrSessionClosed
	}
	dev, err := svc.devices.GetDevice(ctx, sessionID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrDeviceNotFound {
			return Device{}, ErrSessionClosed
		}
		return Device{}, pkgerrors.Wrap(err, "finding device")
	}
	if dev.UserID != userID || !dev.IsActive {
		return Device{}, ErrSessionClosed
	}
	return dev, nil
}

func (svc *Service) Devices(ctx context.Context, userID int) ([]Device, error) {
	if _, err := svc.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return svc.devices.QueryDevices(ctx, userID)
}
